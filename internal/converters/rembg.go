package converters

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Rembg runs the rembg command line tool to cut out image backgrounds.
type Rembg struct {
	bin     string
	workDir string
	path    *Lazy[string]
}

// NewRembg creates a converter for the rembg binary (name or path).
func NewRembg(bin, workDir string) *Rembg {
	if bin == "" {
		bin = "rembg"
	}
	return &Rembg{
		bin:     bin,
		workDir: workDir,
		path: NewLazy("background removal model", func(ctx context.Context) (string, error) {
			p, err := exec.LookPath(bin)
			if err != nil {
				return "", fmt.Errorf("%s not found in PATH (pip install rembg[cli]): %w", bin, err)
			}
			return p, nil
		}),
	}
}

func (r *Rembg) Name() string { return "rembg" }

func (r *Rembg) EnsureLoaded(ctx context.Context) error {
	_, err := r.path.Get(ctx)
	return err
}

// Cutout writes pngData to a scratch file, runs `rembg i` and returns the
// resulting PNG bytes.
func (r *Rembg) Cutout(ctx context.Context, pngData []byte) ([]byte, error) {
	bin, err := r.path.Get(ctx)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(r.workDir, "rembg-")
	if err != nil {
		return nil, fmt.Errorf("create rembg dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.png")
	output := filepath.Join(dir, "output.png")
	if err := os.WriteFile(input, pngData, 0o600); err != nil {
		return nil, fmt.Errorf("write rembg input: %w", err)
	}

	out, err := exec.CommandContext(ctx, bin, "i", input, output).CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("rembg failed: %w\nOutput: %s", err, string(out))
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("read rembg output: %w", err)
	}
	return data, nil
}
