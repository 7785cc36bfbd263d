package corpus

import (
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"time"

	"github.com/scode/transitprobe/rewardsapi"
)

// Config controls one harness run. It is passed to the driver explicitly; nothing in this
// package reads the environment.
type Config struct {
	BaseURL        string        // collection endpoint, e.g. "http://localhost:5268/api/rewards"
	IdenticalCount int           // records sharing IdenticalValue
	RandomCount    int           // records with independently drawn values
	IdenticalValue string        // two-decimal text
	MinValue       string        // inclusive lower bound of random values
	MaxValue       string        // inclusive upper bound of random values
	Timeout        time.Duration // per request
	Workers        int           // 1 means strictly sequential
	MaxFailureRate float64       // service failures tolerated, as a fraction of planned records
	Seed           int64
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        rewardsapi.DefaultBaseURL,
		IdenticalCount: 100,
		RandomCount:    400,
		IdenticalValue: "42.00",
		MinValue:       "1.00",
		MaxValue:       "100.99",
		Timeout:        rewardsapi.DefaultTimeout,
		Workers:        1,
		MaxFailureRate: 0.05,
		Seed:           1,
	}
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("base url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("base url %q: scheme must be http or https", c.BaseURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("base url %q: missing host", c.BaseURL))
	}

	if c.IdenticalCount < 0 {
		errs = append(errs, fmt.Errorf("identical count %d is negative", c.IdenticalCount))
	}
	if c.RandomCount < 0 {
		errs = append(errs, fmt.Errorf("random count %d is negative", c.RandomCount))
	}
	if _, err := toCents(c.IdenticalValue); err != nil {
		errs = append(errs, fmt.Errorf("identical value: %w", err))
	}
	lo, loErr := toCents(c.MinValue)
	if loErr != nil {
		errs = append(errs, fmt.Errorf("min value: %w", loErr))
	}
	hi, hiErr := toCents(c.MaxValue)
	if hiErr != nil {
		errs = append(errs, fmt.Errorf("max value: %w", hiErr))
	}
	if loErr == nil && hiErr == nil && lo > hi {
		errs = append(errs, fmt.Errorf("value range [%s, %s] is empty", c.MinValue, c.MaxValue))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout %v must be positive", c.Timeout))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers %d must be at least 1", c.Workers))
	}
	if c.MaxFailureRate < 0 || c.MaxFailureRate > 1 {
		errs = append(errs, fmt.Errorf("max failure rate %v outside [0, 1]", c.MaxFailureRate))
	}

	return errors.Join(errs...)
}

// plainDecimal admits only signed digit strings with an optional fraction, keeping out the
// hex, binary, fraction and underscore forms big.Rat would otherwise parse.
var plainDecimal = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

func parseDecimal(s string) (*big.Rat, bool) {
	if !plainDecimal.MatchString(s) {
		return nil, false
	}
	return new(big.Rat).SetString(s)
}

// toCents converts decimal text with at most two fractional digits to an integer number of
// cents.
func toCents(s string) (int64, error) {
	r, ok := parseDecimal(s)
	if !ok {
		return 0, fmt.Errorf("%q is not a decimal number", s)
	}
	r.Mul(r, big.NewRat(100, 1))
	if !r.IsInt() {
		return 0, fmt.Errorf("%q has more than two decimal places", s)
	}
	if !r.Num().IsInt64() {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return r.Num().Int64(), nil
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// SameDecimal reports whether a and b denote the same decimal number, so "42", "42.0" and
// "42.00" are all equal. Unparseable text never equals anything.
func SameDecimal(a, b string) bool {
	ra, ok := parseDecimal(a)
	if !ok {
		return false
	}
	rb, ok := parseDecimal(b)
	if !ok {
		return false
	}
	return ra.Cmp(rb) == 0
}
