package diskanalysisfx_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000"
	"github.com/Melvud/ChessAnalysis-sub000/fx/diskanalysisfx"
	"github.com/Melvud/ChessAnalysis-sub000/internal/codec"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle/evaldb"
	"github.com/Melvud/ChessAnalysis-sub000/internal/shard/materialshard"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/diskstore"
)

func writeManifest(t *testing.T, dir string) {
	t.Helper()
	st, err := diskstore.New(dir, codec.Zstd())
	if err != nil {
		t.Fatal(err)
	}
	m := &evaldb.Manifest{Version: 1, TotalShards: 16, Strategy: materialshard.Name, Codec: "zstd"}
	if err := evaldb.WriteManifest(context.Background(), st, m); err != nil {
		t.Fatal(err)
	}
}

func TestModule(t *testing.T) {
	dataDir := t.TempDir()
	writeManifest(t, dataDir)
	cacheDir := filepath.Join(t.TempDir(), "reports")

	var client *chessanalysis.Client
	app := fxtest.New(t,
		fx.Supply(
			diskanalysisfx.Config{DataDir: dataDir, CacheDir: cacheDir},
			zap.NewNop(),
		),
		diskanalysisfx.Module,
		fx.Populate(&client),
	)
	app.RequireStart()

	if _, err := os.Stat(cacheDir); err != nil {
		t.Errorf("cache directory not created: %v", err)
	}
	if _, err := client.Report(context.Background(), "missing"); !errors.Is(err, chessanalysis.ErrCacheMiss) {
		t.Errorf("Report() error = %v, want ErrCacheMiss", err)
	}
	app.RequireStop()
}

func TestModule_MissingConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  diskanalysisfx.Config
	}{
		{"no cache dir", diskanalysisfx.Config{DataDir: "x"}},
		{"no oracle", diskanalysisfx.Config{CacheDir: "x"}},
		{"no database", diskanalysisfx.Config{CacheDir: "x", DataDir: "does-not-exist"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fx.New(
				fx.NopLogger,
				fx.Supply(tt.cfg, zap.NewNop()),
				diskanalysisfx.Module,
				fx.Invoke(func(*chessanalysis.Client) {}),
			)
			if app.Err() == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
