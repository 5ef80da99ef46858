package controller

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/orbitctl/orbitctl/internal/history"
	"github.com/orbitctl/orbitctl/internal/log"
	"github.com/orbitctl/orbitctl/internal/paramchan"
	"github.com/orbitctl/orbitctl/internal/simproc"
	"github.com/orbitctl/orbitctl/internal/surface"
	"github.com/orbitctl/orbitctl/internal/tracing"
)

// Initialize runs the startup sequence: open the parameter channel, launch
// the simulation and wait for its window handle, then embed the surface at
// its fixed size. Every step is fatal on failure; whatever came up before
// the failing step is torn down again and the controller moves to
// StatusFailed.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Status() != StatusPending {
		return fmt.Errorf("controller already initialized (status: %s)", c.Status())
	}
	c.setStatus(StatusInitializing)

	traceID := tracing.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = tracing.GenerateTraceID()
	}
	c.traceID = traceID

	var span trace.Span
	ctx, span = c.tracer.Start(ctx, tracing.SpanInitialize,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()
	span.SetAttributes(
		attribute.String(tracing.AttrChannelPath, c.cfg.ChannelPath),
		attribute.String(tracing.AttrSimPath, c.cfg.ExecPath),
	)

	log.Info(log.CatCtrl, "Initializing controller",
		"channel", c.cfg.ChannelPath,
		"execPath", c.cfg.ExecPath)

	channel, err := c.openChannel(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.setStatus(StatusFailed)
		return err
	}
	c.channel = channel

	process, handle, err := c.launch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		_ = channel.Close()
		c.channel = nil
		c.setStatus(StatusFailed)
		return err
	}

	surf, err := c.embed(ctx, handle)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		_ = process.Cancel()
		_ = channel.Close()
		c.channel = nil
		c.setStatus(StatusFailed)
		return err
	}

	c.process = process
	c.surf = surf
	c.recordRunStart(process, handle)

	c.wg.Add(1)
	go c.watchProcess(process, c.runID, c.runGUID)

	span.SetAttributes(
		attribute.Int64(tracing.AttrWindowHandle, handle),
		attribute.Int(tracing.AttrSimPID, process.PID()),
		attribute.Int64(tracing.AttrRunID, c.runID),
	)
	span.SetStatus(codes.Ok, "")

	c.setStatus(StatusReady)
	c.emit(EventInitialized, Event{
		RunGUID: c.runGUID,
		Handle:  handle,
		PID:     process.PID(),
	})
	log.Info(log.CatCtrl, "Controller ready",
		"handle", handle,
		"pid", process.PID(),
		"run", c.runGUID)
	return nil
}

// Apply forwards one parameter snapshot to the simulation, exactly as
// typed. A delivery failure is counted, recorded in history, and reported
// through the returned error, but never escalates: the controller stays
// ready and the next Apply starts over with a fresh accept.
func (c *Controller) Apply(ctx context.Context, orbitalSpeed, altitude string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Status() != StatusReady {
		return fmt.Errorf("controller not ready (status: %s)", c.Status())
	}

	var span trace.Span
	_, span = c.tracer.Start(ctx, tracing.SpanApply,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()
	span.SetAttributes(
		attribute.String(tracing.AttrOrbitalSpeed, orbitalSpeed),
		attribute.String(tracing.AttrAltitude, altitude),
	)

	snapshot := paramchan.Snapshot{OrbitalSpeed: orbitalSpeed, Altitude: altitude}
	err := c.channel.Send(snapshot)

	c.metrics.Attempts++
	c.metrics.LastUpdatedAt = time.Now()
	switch {
	case err == nil:
		c.metrics.Delivered++
		c.metrics.LastDelivered = c.metrics.LastUpdatedAt
		c.metrics.LastError = ""
		span.SetAttributes(attribute.Int(tracing.AttrDeliveredBytes, len(snapshot.Encode())))
		span.SetStatus(codes.Ok, "")
		log.Info(log.CatCtrl, "Parameters applied",
			"orbitalSpeed", orbitalSpeed,
			"altitude", altitude)
	case errors.Is(err, paramchan.ErrNoPeer):
		c.metrics.NoPeer++
		c.metrics.LastError = err.Error()
		span.AddEvent(tracing.EventNoPeer)
		span.SetStatus(codes.Error, err.Error())
		log.Warn(log.CatCtrl, "Parameters not delivered", "reason", "no peer connected")
	default:
		c.metrics.Failed++
		c.metrics.LastError = err.Error()
		span.RecordError(err)
		span.AddEvent(tracing.EventSendFailed)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorErr(log.CatCtrl, "Parameter delivery failed", err)
	}

	c.recordApply(snapshot, err)

	m := c.metrics
	c.emit(EventApplied, Event{
		RunGUID:   c.runGUID,
		Snapshot:  snapshot,
		Delivered: err == nil,
		Err:       err,
		Metrics:   &m,
	})
	return err
}

// Relaunch replaces the simulation with a fresh instance: the old process
// is cancelled, a new one goes through the same handshake, and its window
// is embedded at the same fixed size. The parameter channel stays open
// throughout; the new simulation connects to the same endpoint. On failure
// the controller stays ready with no simulation, so the operator can retry.
func (c *Controller) Relaunch(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Status() != StatusReady {
		return fmt.Errorf("controller not ready (status: %s)", c.Status())
	}

	var span trace.Span
	ctx, span = c.tracer.Start(ctx, tracing.SpanRelaunch,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	log.Info(log.CatCtrl, "Relaunching simulation", "execPath", c.cfg.ExecPath)

	// The old run's watcher settles its history row once Done closes.
	if old := c.process; old != nil && !old.Status().IsTerminal() {
		_ = old.Cancel()
		select {
		case <-old.Done():
		case <-ctx.Done():
			err := fmt.Errorf("waiting for old simulation to exit: %w", ctx.Err())
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	process, handle, err := c.launch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.process = nil
		c.surf = nil
		return err
	}

	surf, err := c.embed(ctx, handle)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		_ = process.Cancel()
		c.process = nil
		c.surf = nil
		return err
	}

	c.process = process
	c.surf = surf
	c.recordRunStart(process, handle)

	c.wg.Add(1)
	go c.watchProcess(process, c.runID, c.runGUID)

	span.SetAttributes(
		attribute.Int64(tracing.AttrWindowHandle, handle),
		attribute.Int(tracing.AttrSimPID, process.PID()),
		attribute.Int64(tracing.AttrRunID, c.runID),
	)
	span.SetStatus(codes.Ok, "")

	c.emit(EventRelaunched, Event{
		RunGUID: c.runGUID,
		Handle:  handle,
		PID:     process.PID(),
	})
	log.Info(log.CatCtrl, "Simulation relaunched",
		"handle", handle,
		"pid", process.PID(),
		"run", c.runGUID)
	return nil
}

// Close shuts the controller down: the simulation is cancelled, its run row
// is settled by the process watcher, and the parameter channel is unlinked.
// Safe to call more than once.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()

	status := c.Status()
	if status == StatusClosed || status == StatusClosing {
		c.mu.Unlock()
		return nil
	}
	c.setStatus(StatusClosing)

	var span trace.Span
	_, span = c.tracer.Start(ctx, tracing.SpanShutdown)
	defer span.End()

	log.Info(log.CatCtrl, "Shutting controller down")

	if c.process != nil && !c.process.Status().IsTerminal() {
		_ = c.process.Cancel()
	}
	c.cancel()

	// Release lock while waiting for process watchers (avoids holding it
	// across history writes).
	c.mu.Unlock()
	c.wg.Wait()
	c.mu.Lock()

	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			firstErr = err
		}
		c.channel = nil
	}

	// Set final status BEFORE closing broker so subscribers see it.
	c.setStatus(StatusClosed)
	c.broker.Close()

	c.mu.Unlock()

	if firstErr != nil {
		span.RecordError(firstErr)
		span.SetStatus(codes.Error, firstErr.Error())
		return firstErr
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// openChannel binds the parameter endpoint. Wraps paramchan.Open with a
// startup span.
func (c *Controller) openChannel(ctx context.Context) (*paramchan.Channel, error) {
	_, span := c.tracer.Start(ctx, tracing.SpanOpenChannel)
	defer span.End()
	span.SetAttributes(attribute.String(tracing.AttrChannelPath, c.cfg.ChannelPath))

	var opts []paramchan.Option
	if c.cfg.WriteTimeout > 0 {
		opts = append(opts, paramchan.WithWriteTimeout(c.cfg.WriteTimeout))
	}
	if c.cfg.Sanitizer != nil {
		opts = append(opts, paramchan.WithSanitizer(c.cfg.Sanitizer))
	}

	channel, err := paramchan.Open(c.cfg.ChannelPath, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("opening parameter channel: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return channel, nil
}

// launch spawns the simulation and waits for its window handle. On success
// the new run's GUID and transcript path are stored on the controller.
// Called with c.mu held.
func (c *Controller) launch(ctx context.Context) (*simproc.Process, int64, error) {
	_, span := c.tracer.Start(ctx, tracing.SpanLaunch)
	defer span.End()
	span.SetAttributes(attribute.String(tracing.AttrSimPath, c.cfg.ExecPath))

	guid := uuid.NewString()

	// The process lifetime is bound to the controller, not to the ctx of
	// the call that launched it.
	b := simproc.NewLaunchBuilder(c.ctx).
		WithExecutable(c.cfg.ExecPath, c.cfg.Args...).
		WithWorkDir(c.cfg.WorkDir).
		WithEnv(c.cfg.Env).
		WithHandshakeTimeout(c.cfg.HandshakeTimeout)
	if c.cfg.CommandFactory != nil {
		b = b.WithCommandFactory(c.cfg.CommandFactory)
	}
	if c.cfg.Deduper != nil {
		b = b.WithDeduper(c.cfg.Deduper)
	}

	transcriptPath := ""
	if c.cfg.TranscriptDir != "" {
		transcriptPath = filepath.Join(c.cfg.TranscriptDir, "run-"+guid+".jsonl")
		w, err := simproc.NewTranscriptWriter(transcriptPath)
		if err != nil {
			// A missing transcript is not worth failing the launch over.
			log.ErrorErr(log.CatCtrl, "Transcript unavailable for run", err, "path", transcriptPath)
			transcriptPath = ""
		} else {
			b = b.WithTranscript(w)
		}
	}

	process, handle, err := b.LaunchAndGetHandle()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, fmt.Errorf("launching simulation: %w", err)
	}

	c.runGUID = guid
	c.transcriptPath = transcriptPath

	span.SetAttributes(
		attribute.Int64(tracing.AttrWindowHandle, handle),
		attribute.Int(tracing.AttrSimPID, process.PID()),
	)
	span.AddEvent(tracing.EventHandshakeResolved,
		trace.WithAttributes(attribute.Int64(tracing.AttrWindowHandle, handle)),
	)
	span.SetStatus(codes.Ok, "")
	return process, handle, nil
}

// embed hosts the announced window at the configured fixed size.
func (c *Controller) embed(ctx context.Context, handle int64) (*surface.Surface, error) {
	_, span := c.tracer.Start(ctx, tracing.SpanEmbed)
	defer span.End()
	span.SetAttributes(
		attribute.Int64(tracing.AttrWindowHandle, handle),
		attribute.String(tracing.AttrSurfaceSize, c.cfg.SurfaceSize.String()),
	)

	surf, err := surface.Embed(handle, c.cfg.SurfaceSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embedding surface: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return surf, nil
}

// recordRunStart persists the new run. History failures are logged, never
// fatal: the simulation is already up, and losing a history row should not
// take it down. Called with c.mu held.
func (c *Controller) recordRunStart(p *simproc.Process, handle int64) {
	c.runID = 0
	if c.cfg.History == nil {
		return
	}

	run := &history.Run{
		GUID:           c.runGUID,
		TraceID:        c.traceID,
		ExecPath:       c.cfg.ExecPath,
		ChannelPath:    c.cfg.ChannelPath,
		PID:            p.PID(),
		TranscriptPath: c.transcriptPath,
		Status:         simproc.StatusRunning.String(),
		StartedAt:      time.Now(),
	}
	if err := c.cfg.History.CreateRun(run); err != nil {
		log.ErrorErr(log.CatHistory, "Failed to record run", err, "run", c.runGUID)
		return
	}
	c.runID = run.ID

	if err := c.cfg.History.SetRunHandle(run.ID, handle, p.PID()); err != nil {
		log.ErrorErr(log.CatHistory, "Failed to record window handle", err, "run", c.runGUID)
	}
}

// recordApply persists one delivery attempt row. Called with c.mu held.
func (c *Controller) recordApply(snapshot paramchan.Snapshot, sendErr error) {
	if c.cfg.History == nil || c.runID == 0 {
		return
	}

	a := &history.Apply{
		RunID:        c.runID,
		OrbitalSpeed: snapshot.OrbitalSpeed,
		Altitude:     snapshot.Altitude,
		Delivered:    sendErr == nil,
		AppliedAt:    time.Now(),
	}
	if sendErr != nil {
		a.Error = sendErr.Error()
	}
	if err := c.cfg.History.RecordApply(a); err != nil {
		log.ErrorErr(log.CatHistory, "Failed to record apply", err, "run", c.runGUID)
	}
}

// watchProcess forwards simulation output to the broker and settles the run
// row once the process exits. One watcher runs per launched process; each
// closes over its own run so a relaunch never crosses rows.
func (c *Controller) watchProcess(p *simproc.Process, runID int64, runGUID string) {
	defer c.wg.Done()

	for ev := range p.Events() {
		c.emit(EventSimOutput, Event{RunGUID: runGUID, Output: ev})
	}

	// The events channel closes before the final status settles; Done
	// closes after.
	<-p.Done()
	status := p.Status()
	exitErr := p.ExitErr()

	if c.cfg.History != nil && runID > 0 {
		if err := c.cfg.History.FinishRun(runID, status.String(), time.Now()); err != nil {
			log.ErrorErr(log.CatHistory, "Failed to finish run", err, "run", runGUID)
		}
	}

	c.emit(EventSimExited, Event{
		RunGUID:    runGUID,
		ExitStatus: status,
		Err:        exitErr,
	})
}
