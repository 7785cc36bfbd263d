// Package stub serves a local rewards API that keeps discounts encrypted at rest, for running
// the harness without the real service.
package stub

import (
	"encoding/json"
	"errors"
	"log"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/scode/transitprobe/transit"
)

const DefaultBasePath = "/api/rewards"

// Server routes the rewards API onto a Store and a transit Engine.
type Server struct {
	store  *Store
	engine *transit.Engine
	router *mux.Router
}

func NewServer(basePath string, store *Store, engine *transit.Engine) *Server {
	s := &Server{store: store, engine: engine, router: mux.NewRouter()}

	base := strings.TrimRight(basePath, "/")
	s.router.HandleFunc(base, s.handleList).Methods(http.MethodGet)
	s.router.HandleFunc(base, s.handleCreate).Methods(http.MethodPost)
	s.router.HandleFunc(base+"/decrypt/{id:[0-9]+}", s.handleDecrypt).Methods(http.MethodGet)
	s.router.HandleFunc(base+"/{id:[0-9]+}", s.handleGet).Methods(http.MethodGet)
	s.router.HandleFunc(base+"/{id:[0-9]+}", s.handleUpdate).Methods(http.MethodPut)
	s.router.HandleFunc(base+"/{id:[0-9]+}", s.handleDelete).Methods(http.MethodDelete)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type rewardRequest struct {
	Name  string      `json:"name"`
	Value json.Number `json:"value"`
}

type decryptedReward struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Value json.Number `json:"value"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	ct, err := s.engine.Encrypt([]byte(req.Value.String()))
	if err != nil {
		serverError(w, "encrypt", err)
		return
	}
	reward, err := s.store.Create(r.Context(), req.Name, ct)
	if err != nil {
		serverError(w, "create", err)
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	rewards, err := s.store.List(r.Context())
	if err != nil {
		serverError(w, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	reward, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	reward, ok := s.lookup(w, r)
	if !ok {
		return
	}
	plain, err := s.engine.Decrypt(reward.EncryptedValue)
	if err != nil {
		serverError(w, "decrypt", err)
		return
	}
	if _, ok := new(big.Rat).SetString(string(plain)); !ok {
		http.Error(w, "Failed to parse value from decrypted data.", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, decryptedReward{ID: reward.ID, Name: reward.Name, Value: json.Number(plain)})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	ct, err := s.engine.Encrypt([]byte(req.Value.String()))
	if err != nil {
		serverError(w, "encrypt", err)
		return
	}
	reward, err := s.store.Update(r.Context(), id, req.Name, ct)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		serverError(w, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := s.store.Delete(r.Context(), pathID(r))
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, deleteResponse{Success: false, Message: "Reward not found."})
		return
	}
	if err != nil {
		serverError(w, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Success: true, Message: "Reward deleted successfully."})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (Reward, bool) {
	reward, err := s.store.Get(r.Context(), pathID(r))
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return Reward{}, false
	}
	if err != nil {
		serverError(w, "get", err)
		return Reward{}, false
	}
	return reward, true
}

// pathID trusts the route pattern to have admitted digits only.
func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (rewardRequest, bool) {
	var req rewardRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "malformed request: "+err.Error(), http.StatusBadRequest)
		return rewardRequest{}, false
	}
	if req.Value == "" {
		http.Error(w, "value is required", http.StatusBadRequest)
		return rewardRequest{}, false
	}
	return req, true
}

func serverError(w http.ResponseWriter, op string, err error) {
	log.Printf("  [stub] %s failed: %v", op, err)
	http.Error(w, op+" failed", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("  [stub] write response: %v", err)
	}
}
