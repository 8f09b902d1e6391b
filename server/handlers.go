package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	apierrors "github.com/maropu/pg-stats-exporter/errors"
	"github.com/maropu/pg-stats-exporter/pkg/chanwriter"
)

// handleMetrics streams one scrape. The gather runs to completion before
// any response byte is written, so a failing database still yields a clean
// 500 with a JSON body. Only the encoding of the gathered families is
// streamed.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	logger := loggerFrom(ctx)

	families, err := s.gatherFamilies(ctx)
	if err != nil {
		return apierrors.Internal(err)
	}

	self, err := s.registry.Gather()
	if err != nil {
		return apierrors.Internalf("gather exporter metrics: %w", err)
	}
	families = append(families, self...)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan chanwriter.Chunk, 1)
	encodeDone := make(chan error, 1)

	format := expfmt.NewFormat(expfmt.TypeTextPlain)

	encode := Task(func(context.Context) error {
		defer close(chunks)
		err := encodeFamilies(streamCtx, families, chunks, s.config.BufferSize, format)
		encodeDone <- err
		return err
	})
	if err := s.pool.Submit(encode); err != nil {
		return apierrors.Internalf("submit encode task: %w", err)
	}

	w.Header().Set("Content-Type", string(format))
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	var written int
	for chunk := range chunks {
		n, werr := w.Write(chunk)
		written += n
		if werr != nil {
			// Client went away mid-stream. Expected during scraper
			// restarts, so not an error condition.
			cancel()
			for range chunks {
			}
			logger.Info("client closed connection during stream",
				"bytes_sent", written, "error", werr)
			break
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	if err := <-encodeDone; err != nil && !errors.Is(err, chanwriter.ErrStreamClosed) {
		logger.Error("encoding failed mid-stream", "error", err)
	}

	logger.Debug("metrics streamed", "families", len(families), "bytes", written)
	return nil
}

// gatherFamilies runs the database gather on the worker pool and waits for
// its result or request cancellation.
func (s *Server) gatherFamilies(ctx context.Context) ([]*dto.MetricFamily, error) {
	type gatherResult struct {
		families []*dto.MetricFamily
		err      error
	}
	results := make(chan gatherResult, 1)

	gather := Task(func(context.Context) error {
		families, err := s.gatherer.Gather(ctx)
		results <- gatherResult{families, err}
		return err
	})
	if err := s.pool.Submit(gather); err != nil {
		return nil, fmt.Errorf("submit gather task: %w", err)
	}

	select {
	case res := <-results:
		return res.families, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// encodeFamilies renders families as Prometheus text through a channel
// writer, one buffer-sized chunk at a time.
func encodeFamilies(ctx context.Context, families []*dto.MetricFamily,
	chunks chan<- chanwriter.Chunk, bufSize int, format expfmt.Format) error {

	writer := chanwriter.New(ctx, chunks, bufSize)
	encoder := expfmt.NewEncoder(writer, format)

	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return err
		}
	}
	return writer.Flush()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(http.StatusOK)
	_, err := w.Write([]byte("OK"))
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) error {
	stats := s.pool.Stats()

	w.Header().Set("Content-Type", "text/html")
	_, err := fmt.Fprintf(w, `<html>
<head><title>PostgreSQL Statistics Exporter</title></head>
<body>
<h1>PostgreSQL Statistics Exporter</h1>
<p><a href="/metrics">Metrics</a></p>
<p><a href="/health">Health</a></p>
<p>Worker pool: %d workers, queue %d/%d, %d processed (%d failed, %d dropped)</p>
</body>
</html>`, stats.Workers, stats.QueueDepth, stats.QueueSize,
		stats.Processed, stats.Failed, stats.Dropped)
	return err
}
