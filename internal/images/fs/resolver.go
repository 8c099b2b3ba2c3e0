// Package fs ищет картинки компонентов в локальном каталоге.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type Resolver struct {
	dir        string
	publicBase string
	exts       []string
}

// New publicBase: префикс ссылок, по которому HTTP-сервер раздаёт dir.
func New(dir, publicBase string, exts []string) (*Resolver, error) {
	if dir == "" {
		return nil, fmt.Errorf("images dir required")
	}
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("images dir: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("images dir %s is not a directory", dir)
	}
	return &Resolver{dir: dir, publicBase: strings.TrimRight(publicBase, "/"), exts: exts}, nil
}

func (r *Resolver) ResolveImage(ctx context.Context, id string) (string, bool, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", false, nil
	}
	for _, ext := range r.exts {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		name := id + ext
		st, err := os.Stat(filepath.Join(r.dir, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", false, err
		}
		if st.IsDir() {
			continue
		}
		return r.publicBase + "/" + url.PathEscape(name), true, nil
	}
	return "", false, nil
}
