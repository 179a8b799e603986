package kafka

import (
	"sort"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestMessageCarriesHeaders(t *testing.T) {
	msg := message([]byte("7"), []byte(`{"kind":"maker"}`), map[string]string{
		"event-id":   "abc",
		"event-kind": "maker",
	})
	require.Equal(t, []byte("7"), msg.Key)
	require.Equal(t, []byte(`{"kind":"maker"}`), msg.Value)

	sort.Slice(msg.Headers, func(i, j int) bool { return msg.Headers[i].Key < msg.Headers[j].Key })
	require.Equal(t, []kafka.Header{
		{Key: "event-id", Value: []byte("abc")},
		{Key: "event-kind", Value: []byte("maker")},
	}, msg.Headers)
}

func TestNewProducerHashesKeys(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "econia.events")
	require.Equal(t, "econia.events", p.writer.Topic)
	require.IsType(t, &kafka.Hash{}, p.writer.Balancer)
	require.Equal(t, kafka.RequireAll, p.writer.RequiredAcks)
	require.NoError(t, p.Close())
}
