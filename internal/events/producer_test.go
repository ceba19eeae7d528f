package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/models"
	skafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []skafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...skafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestPublish(t *testing.T) {
	fw := &fakeWriter{}
	p := NewKafkaProducerWithWriter(fw)

	err := p.Publish(context.Background(), "key1", map[string]string{"a": "b"})
	require.NoError(t, err)
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, "key1", string(fw.msgs[0].Key))
	assert.JSONEq(t, `{"a":"b"}`, string(fw.msgs[0].Value))
}

func TestPublish_WriterError(t *testing.T) {
	p := NewKafkaProducerWithWriter(&fakeWriter{err: errors.New("broker down")})

	err := p.Publish(context.Background(), "key1", "v")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestEmitter_KeysByBooking(t *testing.T) {
	fw := &fakeWriter{}
	emitter := NewEmitter(NewKafkaProducerWithWriter(fw), quietLogger())
	bookingID := uuid.New()

	emitter.Emit(context.Background(), Event{
		Type:       BookingStatusChanged,
		BookingID:  &bookingID,
		TripID:     uuid.New(),
		FromStatus: "pending",
		ToStatus:   "accepted",
		ActorRole:  models.RoleCarrier,
	})

	require.Len(t, fw.msgs, 1)
	assert.Equal(t, bookingID.String(), string(fw.msgs[0].Key))

	var decoded Event
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &decoded))
	assert.Equal(t, BookingStatusChanged, decoded.Type)
	assert.Equal(t, "accepted", decoded.ToStatus)
	assert.False(t, decoded.OccurredAt.IsZero())
}

func TestEmitter_SwallowsErrors(t *testing.T) {
	emitter := NewEmitter(NewKafkaProducerWithWriter(&fakeWriter{err: errors.New("boom")}), quietLogger())
	tripID := uuid.New()

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), Event{Type: TripStatusChanged, TripID: tripID})
	})

	var nilEmitter *Emitter
	assert.NotPanics(t, func() {
		nilEmitter.Emit(context.Background(), Event{Type: TripStatusChanged, TripID: tripID})
	})
}

type ctxRecorder struct {
	ctxErr error
	called bool
}

func (p *ctxRecorder) Publish(ctx context.Context, _ string, _ interface{}) error {
	p.called = true
	p.ctxErr = ctx.Err()
	return nil
}

func (p *ctxRecorder) Close() error { return nil }

func TestEmitter_OutlivesCancelledRequest(t *testing.T) {
	rec := &ctxRecorder{}
	emitter := NewEmitter(rec, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emitter.Emit(ctx, Event{Type: BookingCreated, TripID: uuid.New()})

	require.True(t, rec.called)
	assert.NoError(t, rec.ctxErr)
}
