package domain

import (
	"errors"
	"fmt"
)

// ErrMissingCredential marks a collector that cannot run without an API key.
var ErrMissingCredential = errors.New("missing api credential")

// CollectionError describes one failed unit of collection work.
type CollectionError struct {
	Platform Platform
	Country  Country
	// Stage is the step that failed: "search", "statistics", "page", "session", ...
	Stage string
	// Key identifies the unit inside the stage (keyword, page number).
	Key string
	Err error
}

func (e *CollectionError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s/%s %s: %v", e.Platform, e.Country, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s/%s %s %q: %v", e.Platform, e.Country, e.Stage, e.Key, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one collected item: an observation or an error.
type Result struct {
	Observation Observation
	Err         *CollectionError
}

// OK reports whether the result carries an observation.
func (r Result) OK() bool {
	return r.Err == nil
}

// Success wraps an observation.
func Success(obs Observation) Result {
	return Result{Observation: obs}
}

// Failure wraps a collection error.
func Failure(platform Platform, country Country, stage, key string, err error) Result {
	return Result{Err: &CollectionError{
		Platform: platform,
		Country:  country,
		Stage:    stage,
		Key:      key,
		Err:      err,
	}}
}

// Split separates observations from failures, keeping order.
func Split(results []Result) ([]Observation, []*CollectionError) {
	var (
		observations []Observation
		failures     []*CollectionError
	)
	for _, r := range results {
		if r.OK() {
			observations = append(observations, r.Observation)
			continue
		}
		failures = append(failures, r.Err)
	}
	return observations, failures
}
