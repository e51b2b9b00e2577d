package clip

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cbegin/mixsynth-go/internal/codec"
	apperrors "github.com/cbegin/mixsynth-go/internal/errors"
	"github.com/cbegin/mixsynth-go/internal/pcm"
)

// Loader resolves a clip's source reference to decoded audio.
type Loader interface {
	Load(ctx context.Context, ref string) (*pcm.Buffer, error)
}

// MapLoader serves in-memory sources.
type MapLoader map[string]*pcm.Buffer

func (m MapLoader) Load(ctx context.Context, ref string) (*pcm.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, ok := m[ref]
	if !ok || buf == nil || buf.Frames() == 0 {
		return nil, apperrors.NewOpError("load", ref, apperrors.ErrNoAudioLoaded)
	}
	return buf, nil
}

// FileLoader decodes files relative to Root through a codec registry and
// caches the results. It is safe for concurrent use.
type FileLoader struct {
	Root     string
	Registry *codec.Registry

	mu    sync.Mutex
	cache map[string]*pcm.Buffer
}

func NewFileLoader(root string) *FileLoader {
	return &FileLoader{Root: root, Registry: codec.Default(), cache: map[string]*pcm.Buffer{}}
}

func (l *FileLoader) Load(ctx context.Context, ref string) (*pcm.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	if buf, ok := l.cache[ref]; ok {
		l.mu.Unlock()
		return buf, nil
	}
	l.mu.Unlock()

	path := ref
	if !filepath.IsAbs(path) && l.Root != "" {
		path = filepath.Join(l.Root, filepath.FromSlash(ref))
	}
	reg := l.Registry
	if reg == nil {
		reg = codec.Default()
	}
	buf, err := reg.DecodeFile(path)
	if err != nil {
		return nil, apperrors.NewOpError("load", ref, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cache == nil {
		l.cache = map[string]*pcm.Buffer{}
	}
	if cached, ok := l.cache[ref]; ok {
		return cached, nil
	}
	l.cache[ref] = buf
	return buf, nil
}

// Forget drops ref from the cache.
func (l *FileLoader) Forget(ref string) {
	l.mu.Lock()
	delete(l.cache, ref)
	l.mu.Unlock()
}

// Preload loads every ref concurrently and returns them by ref. The first
// failure cancels the rest.
func Preload(ctx context.Context, loader Loader, refs []string) (map[string]*pcm.Buffer, error) {
	out := make(map[string]*pcm.Buffer, len(refs))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	seen := map[string]bool{}
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		g.Go(func() error {
			buf, err := loader.Load(ctx, ref)
			if err != nil {
				return err
			}
			if err := buf.Validate(); err != nil {
				return apperrors.NewOpError("load", ref, fmt.Errorf("%w: %v", apperrors.ErrNoAudioLoaded, err))
			}
			mu.Lock()
			out[ref] = buf
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
