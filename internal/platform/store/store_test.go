package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dontdude/goconv/internal/domain"
)

// backends runs the same contract against every driver.
func backends(t *testing.T) map[string]func(t *testing.T) domain.ArtifactStore {
	return map[string]func(t *testing.T) domain.ArtifactStore{
		DriverSQLite: func(t *testing.T) domain.ArtifactStore {
			s, err := Open(Options{Driver: DriverSQLite, DatabasePath: filepath.Join(t.TempDir(), "artifacts.db")})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		DriverRedis: func(t *testing.T) domain.ArtifactStore {
			mr := miniredis.RunT(t)
			s, err := Open(Options{Driver: DriverRedis, RedisAddr: mr.Addr()})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestArtifactStore_PersistAndLoad(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			first, err := s.PersistArtifact(ctx, []byte("%PDF-1.7 one"), "one.pdf")
			require.NoError(t, err)
			second, err := s.PersistArtifact(ctx, []byte("two"), "two.docx")
			require.NoError(t, err)
			assert.NotEqual(t, first, second)

			a, err := s.Artifact(ctx, first)
			require.NoError(t, err)
			assert.Equal(t, "one.pdf", a.Filename)
			assert.Equal(t, []byte("%PDF-1.7 one"), a.Content)
			assert.Equal(t, first, a.ID)
		})
	}
}

func TestArtifactStore_NotFound(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			_, err := s.Artifact(context.Background(), 9999)
			assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
		})
	}
}

func TestArtifactStore_Search(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			for _, n := range []string{"Quarterly-Report.pdf", "slides.pptx", "report_final.docx", "100%.png"} {
				_, err := s.PersistArtifact(ctx, []byte("x"), n)
				require.NoError(t, err)
			}

			got, err := s.Search(ctx, "REPORT")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "Quarterly-Report.pdf", got[0].Filename)
			assert.Equal(t, "report_final.docx", got[1].Filename)

			got, err = s.Search(ctx, "%")
			require.NoError(t, err)
			require.Len(t, got, 1, "wildcards are matched literally")
			assert.Equal(t, "100%.png", got[0].Filename)

			got, err = s.Search(ctx, "nothing-matches")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Options{Driver: "postgres"})
	assert.Error(t, err)
}
