// Package poppler locates and runs the pdftoppm binary from the poppler
// toolset to rasterize PDF pages into PNG images.
//
// Rasterization is an external collaborator of the pipeline: this package
// only resolves the binary and shells out per page. There is no
// auto-download; poppler has no single static-binary distribution, so a
// missing binary produces install instructions instead.
package poppler

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Environment variable for a custom pdftoppm path.
const envPdftoppmPath = "PDFTOPPM_PATH"

// binaryName is the poppler page rasterizer binary.
const binaryName = "pdftoppm"

// envProvider abstracts environment and path lookup operations.
type envProvider interface {
	Getenv(key string) string
	LookPath(file string) (string, error)
}

// osEnvProvider implements envProvider using os and exec packages.
type osEnvProvider struct{}

func (osEnvProvider) Getenv(key string) string {
	return os.Getenv(key)
}

func (osEnvProvider) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Resolver finds the pdftoppm binary.
type Resolver struct {
	env  envProvider
	goos string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithEnvProvider sets the environment provider implementation (for testing).
func WithEnvProvider(e envProvider) ResolverOption {
	return func(r *Resolver) { r.env = e }
}

// WithGOOS sets the target OS for install instructions (for testing).
func WithGOOS(goos string) ResolverOption {
	return func(r *Resolver) { r.goos = goos }
}

// NewResolver creates a Resolver with production defaults.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		env:  osEnvProvider{},
		goos: runtime.GOOS,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds pdftoppm using the following precedence:
//  1. PDFTOPPM_PATH environment variable (error if set but invalid)
//  2. System PATH
func (r *Resolver) Resolve() (string, error) {
	if envPath := r.env.Getenv(envPdftoppmPath); envPath != "" {
		if _, err := r.env.LookPath(envPath); err != nil {
			return "", fmt.Errorf("%w: %s is set to %q but binary not found or not executable",
				ErrNotFound, envPdftoppmPath, envPath)
		}
		return envPath, nil
	}

	if path, err := r.env.LookPath(binaryName); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%w\n\n%s", ErrNotFound, r.installInstructions())
}

// installInstructions returns platform-specific instructions.
func (r *Resolver) installInstructions() string {
	switch r.goos {
	case "darwin":
		return `To install poppler:
  brew install poppler

Or set PDFTOPPM_PATH environment variable to your pdftoppm binary.`
	case "linux":
		return `To install poppler:
  Ubuntu/Debian: sudo apt install poppler-utils
  Fedora:        sudo dnf install poppler-utils
  Arch:          sudo pacman -S poppler

Or set PDFTOPPM_PATH environment variable to your pdftoppm binary.`
	case "windows":
		return `To install poppler:
  Download from https://github.com/oschwartz10612/poppler-windows/releases

Or set PDFTOPPM_PATH environment variable to your pdftoppm.exe.`
	default:
		return `To install poppler, see https://poppler.freedesktop.org/
Or set PDFTOPPM_PATH environment variable to your pdftoppm binary.`
	}
}
