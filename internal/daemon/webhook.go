package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"notesd/internal/gitrepo"
	"notesd/internal/hooks"
	"notesd/internal/ingest"
	"notesd/internal/journal"
	"notesd/internal/logging"
	"notesd/internal/mutex"
)

// maxRequestBytes caps the webhook request body. The transcript cap is
// enforced separately; the slack covers JSON framing and the title.
const maxRequestBytes = ingest.MaxTranscriptBytes + 64*1024

// dispatchTimeout bounds the post-push workflow dispatch, which runs
// detached from the request.
const dispatchTimeout = 2 * time.Minute

type webhookResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Revision   string `json:"revision,omitempty"`
	Pushed     bool   `json:"pushed"`
	Degraded   bool   `json:"degraded,omitempty"`
}

func (s *apiServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Stop waits for in-flight deliveries before draining background work,
	// so side-effect goroutines spawned below never race shutdown.
	s.daemon.handlers.Add(1)
	defer s.daemon.handlers.Done()

	var payload ingest.Payload
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	d := s.daemon
	log := s.log()

	// The client may disconnect at any point; once validation passes the
	// mutation runs to completion regardless.
	ctx := context.WithoutCancel(r.Context())

	if err := payload.Validate(); err != nil {
		if _, recErr := d.store.RecordRejected(ctx, payload.Title, err.Error()); recErr != nil {
			log.Warn("failed to journal rejected delivery", logging.Error(recErr))
		}
		if errors.Is(err, ingest.ErrTooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	delivery, err := d.store.Record(ctx, payload.Title)
	if err != nil {
		log.Error("failed to journal delivery", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "journal unavailable")
		return
	}
	log = log.With(logging.String(logging.FieldDeliveryID, delivery.ID))

	lockCtx, cancel := context.WithTimeout(ctx, lockWaitTimeout)
	token, err := d.serializer.Acquire(lockCtx)
	cancel()
	if err != nil {
		if setErr := d.store.SetFailed(ctx, delivery.ID, "timed out waiting for mutation lock"); setErr != nil {
			log.Warn("failed to journal lock timeout", logging.Error(setErr))
		}
		if errors.Is(err, mutex.ErrTimeout) {
			w.Header().Set("Retry-After", strconv.Itoa(int(lockWaitTimeout/time.Second)))
			s.writeError(w, http.StatusServiceUnavailable, "daemon busy, retry later")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result := d.processDelivery(ctx, token, log, delivery, payload)
	if result.err != nil {
		s.writeError(w, http.StatusInternalServerError, result.err.Error())
		return
	}

	d.afterDelivery(log, delivery, result)

	status := http.StatusOK
	responseStatus := "success"
	if result.degraded {
		status = http.StatusAccepted
		responseStatus = "degraded"
	}
	s.writeJSON(w, status, webhookResponse{
		Status:     responseStatus,
		Message:    result.message(),
		DeliveryID: delivery.ID,
		Filename:   result.filename,
		Revision:   result.revision,
		Pushed:     result.pushed,
		Degraded:   result.degraded,
	})
}

type deliveryResult struct {
	filename string
	revision string
	pushed   bool
	degraded bool
	err      error
}

// message describes the best-known terminal state for the HTTP caller.
func (r deliveryResult) message() string {
	switch {
	case r.pushed:
		return "transcript archived and pushed"
	case r.degraded && r.revision != "":
		return "transcript committed locally, push pending retry"
	case r.degraded:
		return "transcript written, sync degraded"
	case r.revision != "":
		return "transcript committed to the local archive"
	default:
		return "transcript written to the inbox"
	}
}

// processDelivery drives one delivery through sync, write, commit, and
// push while holding the serializer token.
func (d *Daemon) processDelivery(ctx context.Context, token *mutex.Token, log *slog.Logger, delivery *journal.Delivery, payload ingest.Payload) deliveryResult {
	defer token.Release()

	var result deliveryResult

	if d.cfg.SyncEnabled() {
		if _, err := d.repo.Pull(ctx); err != nil {
			// A diverged or unreachable remote must not drop the
			// transcript; the write and commit still happen and the
			// push leg decides how degraded the outcome is.
			result.degraded = true
			log.Warn("pre-write sync failed", logging.Error(err))
		}
	}

	name := ingest.Filename(time.Now().UTC(), payload.Title)
	name = ingest.UniqueName(d.cfg.InboxDir(), name)
	if _, err := ingest.WriteAtomic(d.cfg.InboxDir(), name, payload.Transcript); err != nil {
		return d.failDelivery(ctx, log, delivery, result, fmt.Errorf("write transcript: %w", err))
	}
	result.filename = name
	delivery.Filename = name
	delivery.Status = journal.StatusWritten
	if err := d.store.Update(ctx, delivery); err != nil {
		log.Warn("failed to journal written state", logging.Error(err))
	}
	log.Info("transcript written", logging.String(logging.FieldFilename, name))

	if !d.cfg.Git.AutoCommit {
		return result
	}

	commitPath := filepath.Join(d.cfg.InboxDir(), name)
	hash, err := d.repo.Commit([]string{commitPath}, d.cfg.CommitMessage(payload.Title))
	if err != nil {
		return d.failDelivery(ctx, log, delivery, result, fmt.Errorf("commit transcript: %w", err))
	}
	result.revision = hash.String()
	delivery.Revision = result.revision
	delivery.Status = journal.StatusCommitted
	if err := d.store.Update(ctx, delivery); err != nil {
		log.Warn("failed to journal committed state", logging.Error(err))
	}
	log.Info("transcript committed", logging.String(logging.FieldRevision, result.revision))

	if !d.cfg.SyncEnabled() {
		return result
	}

	if err := d.repo.PushWithRetry(ctx); err != nil {
		// The commit stays local; the next sync cycle or restart retries.
		result.degraded = true
		delivery.Status = journal.StatusPushPending
		delivery.ErrorMessage = err.Error()
		if updErr := d.store.Update(ctx, delivery); updErr != nil {
			log.Warn("failed to journal push_pending state", logging.Error(updErr))
		}
		if errors.Is(err, gitrepo.ErrPushConflict) {
			log.Warn("push conflict, commit retained locally", logging.Error(err))
		} else {
			log.Warn("push failed, commit retained locally", logging.Error(err))
		}
		return result
	}

	result.pushed = true
	delivery.Status = journal.StatusPushed
	delivery.ErrorMessage = ""
	if err := d.store.Update(ctx, delivery); err != nil {
		log.Warn("failed to journal pushed state", logging.Error(err))
	}
	log.Info("transcript pushed", logging.String(logging.FieldFilename, name))
	return result
}

func (d *Daemon) failDelivery(ctx context.Context, log *slog.Logger, delivery *journal.Delivery, result deliveryResult, err error) deliveryResult {
	if setErr := d.store.SetFailed(ctx, delivery.ID, err.Error()); setErr != nil {
		log.Warn("failed to journal failure", logging.Error(setErr))
	}
	log.Error("delivery failed", logging.Error(err))
	result.err = err
	return result
}

// afterDelivery runs the post-mutation side effects that never influence
// the webhook response: workflow dispatch after a push, or local
// standalone processing after a write.
func (d *Daemon) afterDelivery(log *slog.Logger, delivery *journal.Delivery, result deliveryResult) {
	if result.pushed && d.dispatcher != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
			defer cancel()
			if err := d.dispatcher.Dispatch(ctx, result.filename, result.revision); err != nil {
				log.Warn("workflow dispatch failed", logging.Error(err))
				return
			}
			log.Info("workflow dispatched", logging.String(logging.FieldFilename, result.filename))
		}()
	}

	if cmd, ok := hooks.StandaloneCommand(d.cfg.Processing.Standalone, d.cfg.Paths.DataRepo); ok && result.filename != "" {
		cmd.Env["TRANSCRIPT_FILE"] = filepath.Join("inbox", result.filename)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if _, err := d.hookRunner.Run(context.Background(), cmd); err != nil {
				log.Warn("standalone processing failed", logging.Error(err))
			}
		}()
	}
}
