// Package feed moves crack jobs and results over NATS. A driver publishes
// jobs naming the archives and members to work on; workers subscribe, run
// the pipeline, and publish the outcome.
package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Default subjects for jobs and results.
const (
	DefaultJobSubject    = "zipcrack.jobs"
	DefaultResultSubject = "zipcrack.results"
)

// Job describes one crack request. Paths are resolved on the worker, so
// jobs only make sense on a fleet sharing a filesystem or object-store
// mount.
type Job struct {
	ID            string `json:"id"`
	CipherArchive string `json:"cipher_archive"`
	CipherMember  string `json:"cipher_member"`
	PlainArchive  string `json:"plain_archive,omitempty"`
	PlainFile     string `json:"plain_file,omitempty"`
	PlainMember   string `json:"plain_member,omitempty"`
	Offset        int    `json:"offset"`
}

// Result reports one finished job.
type Result struct {
	JobID      string    `json:"job_id"`
	Found      bool      `json:"found"`
	X          uint32    `json:"x,omitempty"`
	Y          uint32    `json:"y,omitempty"`
	Z          uint32    `json:"z,omitempty"`
	Error      string    `json:"error,omitempty"`
	Candidates int       `json:"candidates"`
	Duration   string    `json:"duration"`
	FinishedAt time.Time `json:"finished_at"`
}

// Conn wraps a NATS connection with the job/result subjects.
type Conn struct {
	nc            *nats.Conn
	jobSubject    string
	resultSubject string
}

// Connect dials the NATS server. Empty subjects fall back to the
// defaults.
func Connect(url, jobSubject, resultSubject string) (*Conn, error) {
	if jobSubject == "" {
		jobSubject = DefaultJobSubject
	}
	if resultSubject == "" {
		resultSubject = DefaultResultSubject
	}

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Conn{nc: nc, jobSubject: jobSubject, resultSubject: resultSubject}, nil
}

// Close drains and closes the connection.
func (c *Conn) Close() {
	_ = c.nc.Drain()
}

// PublishJob enqueues one crack job.
func (c *Conn) PublishJob(job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := c.nc.Publish(c.jobSubject, data); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// PublishResult reports one finished job.
func (c *Conn) PublishResult(res Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := c.nc.Publish(c.resultSubject, data); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	return nil
}

// SubscribeJobs delivers decoded jobs to handler. Workers join the same
// queue group so each job goes to exactly one of them. Malformed
// messages are dropped after calling bad, when set.
func (c *Conn) SubscribeJobs(handler func(Job), bad func(error)) (*nats.Subscription, error) {
	sub, err := c.nc.QueueSubscribe(c.jobSubject, "zipcrack-workers", func(msg *nats.Msg) {
		var job Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			if bad != nil {
				bad(fmt.Errorf("decode job: %w", err))
			}
			return
		}
		handler(job)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe jobs: %w", err)
	}
	return sub, nil
}

// SubscribeResults delivers decoded results to handler.
func (c *Conn) SubscribeResults(handler func(Result), bad func(error)) (*nats.Subscription, error) {
	sub, err := c.nc.Subscribe(c.resultSubject, func(msg *nats.Msg) {
		var res Result
		if err := json.Unmarshal(msg.Data, &res); err != nil {
			if bad != nil {
				bad(fmt.Errorf("decode result: %w", err))
			}
			return
		}
		handler(res)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe results: %w", err)
	}
	return sub, nil
}
