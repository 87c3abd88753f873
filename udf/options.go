package udf

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ProgressFunc is called as the image is written (after each zero or
// file-content sector, and after each pre-rendered extent), with the
// number of sectors written so far and the total number of sectors the
// image will contain. Implementations must not block; cmd/mkudfiso wires this to a
// progress bar. The core writer never imports a terminal UI package.
type ProgressFunc func(written, total uint32)

// Options configures a Build. Zero value is not generally usable;
// start from DefaultOptions and override fields.
type Options struct {
	// VolumeLabel is the PVD/LVD/FSD volume identifier. If empty, Build
	// derives one from the output path's basename ("MKUDFISO" when the
	// output path is empty or "-").
	VolumeLabel string

	// VolumeSetIdentifier distinguishes this disc within a set.
	// DefaultOptions fills it with uuid.NewString(); an empty value
	// leaves the PVD's VolumeSetIdentifier field zeroed.
	VolumeSetIdentifier string

	// SizeLimit caps total content bytes; 0 means unlimited. Exceeding
	// it aborts the build before any output is produced.
	SizeLimit uint64

	// SparseDetect enables scanning file content for whole-sector zero
	// runs of at least 16 sectors; the writer emits zero sectors for
	// them without reading the host bytes. The runs stay allocated and
	// recorded: the extent map and short_ad entries are unchanged.
	SparseDetect bool

	// Logger receives scan warnings, sidecar-suppression notices, and
	// sparse-detection decisions. Defaults to a stderr console writer.
	Logger zerolog.Logger

	// Progress is called during image streaming; may be nil.
	Progress ProgressFunc

	// AppendReport requests that the report sidecar be rendered and
	// appended into the image itself (referenced from the
	// Implementation Use Volume Descriptor) rather than only written
	// to a side file. Suppressed, with a logged warning, if it would
	// push the image past SizeLimit.
	AppendReport bool
}

// DefaultOptions returns an Options with a console logger and no
// limits set.
func DefaultOptions() Options {
	return Options{
		VolumeSetIdentifier: uuid.NewString(),
		Logger:              zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stderr })).With().Timestamp().Logger(),
	}
}

// DefaultOptionsTo returns Options logging to w instead of stderr,
// useful for tests that want to assert on warning output.
func DefaultOptionsTo(w io.Writer) Options {
	o := DefaultOptions()
	o.Logger = zerolog.New(w)
	return o
}
