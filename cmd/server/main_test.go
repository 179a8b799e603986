package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"econia/config"
	"econia/domain/identity"
	"econia/domain/orderbook"
	"econia/domain/registry"
	"econia/infra/kafka"
	"econia/infra/metrics"
	"econia/infra/sequence"
	"econia/jobs/broadcaster"
	"econia/service"
	"econia/snapshot"
)

func TestSnapshotShow(t *testing.T) {
	home := t.TempDir()
	svc := service.New(nil, nil, sequence.New(0), zerolog.Nop(), nil)
	_, err := svc.RegisterMarket(context.Background(), registry.Coin("APT", 8), registry.Coin("USDC", 6),
		orderbook.Params{LotSize: 1, TickSize: 1, MinSize: 1}, identity.UnderwriterCapability{})
	require.NoError(t, err)
	_, err = svc.WriteSnapshot(filepath.Join(home, "data", "snapshot"))
	require.NoError(t, err)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"snapshot", "show", "--home", home, "--log-level", "error"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var sum snapshot.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &sum))
	require.Equal(t, uint64(1), sum.Seq)
	require.Len(t, sum.Markets, 1)
	require.Equal(t, "coin:APT:8", sum.Markets[0].Base)
}

func TestSnapshotShowMissingFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"snapshot", "show", "--home", t.TempDir()})
	require.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestNewPublisher(t *testing.T) {
	pub, err := newPublisher(config.BroadcastConfig{Driver: config.DriverNone})
	require.NoError(t, err)
	require.Nil(t, pub)

	pub, err = newPublisher(config.BroadcastConfig{Driver: config.DriverKafkaGo, Brokers: []string{"localhost:9092"}, Topic: "t"})
	require.NoError(t, err)
	require.IsType(t, &kafka.Producer{}, pub)
	require.NoError(t, pub.Close())

	var _ broadcaster.Publisher = (*broadcaster.SaramaPublisher)(nil)
}

func TestHTTPHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	svc := service.New(nil, nil, sequence.New(0), zerolog.Nop(), m)
	_, err = svc.RegisterMarket(context.Background(), registry.Coin("APT", 8), registry.Coin("USDC", 6),
		orderbook.Params{LotSize: 1, TickSize: 1, MinSize: 1}, identity.UnderwriterCapability{})
	require.NoError(t, err)

	srv := httptest.NewServer(newHTTPHandler(reg, svc))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	var health map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	require.Equal(t, map[string]int{"markets": 1}, health)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "econia_commands_total")
}
