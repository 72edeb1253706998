package errors

import (
	"sort"
	"sync"
	"time"
)

// Failure is one isolated per-file failure recorded during a load.
type Failure struct {
	Path      string
	Type      ErrorType
	Err       error
	Timestamp time.Time
}

// Error implements the error interface
func (f Failure) Error() string {
	return f.Path + ": " + f.Err.Error()
}

// Unwrap returns the recorded error
func (f Failure) Unwrap() error {
	return f.Err
}

// Collector keeps the latest failure per controller file. A later successful
// load of the same file clears it.
type Collector struct {
	failures map[string]Failure
	mutex    sync.RWMutex
}

// NewCollector creates a new failure collector
func NewCollector() *Collector {
	return &Collector{
		failures: make(map[string]Failure),
	}
}

// Add records err for path, replacing any earlier failure for it
func (c *Collector) Add(path string, err error) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.failures[path] = Failure{
		Path:      path,
		Type:      TypeOf(err),
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Resolve forgets the failure recorded for path
func (c *Collector) Resolve(path string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.failures, path)
}

// ResolveType forgets the failure recorded for path if it has type t
func (c *Collector) ResolveType(path string, t ErrorType) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if f, ok := c.failures[path]; ok && f.Type == t {
		delete(c.failures, path)
	}
}

// Failures returns all recorded failures ordered by path
func (c *Collector) Failures() []Failure {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make([]Failure, 0, len(c.failures))
	for _, f := range c.failures {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})

	return result
}

// ByType returns the recorded failures of one type ordered by path
func (c *Collector) ByType(t ErrorType) []Failure {
	var out []Failure
	for _, f := range c.Failures() {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

// HasErrors returns true if there are any failures
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.failures) > 0
}

// Len returns the number of files with a recorded failure
func (c *Collector) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.failures)
}

// Clear clears all failures
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.failures = make(map[string]Failure)
}
