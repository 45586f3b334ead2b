// Command qpdfcore is a thin CLI over the qpdfcore library: enough to open
// a file, run it through the writer or the QDF fixer, and report warnings
// with qpdf's 0/2/3 exit-code convention. It exists to exercise the
// library end to end, not as a feature-complete qpdf replacement.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/qpdf-go/qpdfcore/config"
	"github.com/qpdf-go/qpdfcore/crypt"
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
	"github.com/qpdf-go/qpdfcore/qdffix"
	"github.com/qpdf-go/qpdfcore/resolve"
	"github.com/qpdf-go/qpdfcore/source"
	"github.com/qpdf-go/qpdfcore/stream"
	"github.com/qpdf-go/qpdfcore/warnings"
	"github.com/qpdf-go/qpdfcore/writer"
	"github.com/qpdf-go/qpdfcore/xref"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: qpdfcore <command> [flags] args...")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  rewrite [flags] in.pdf out.pdf   copy a PDF through the writer")
	fmt.Fprintln(os.Stderr, "  qdf-fix in.qdf out.pdf           re-normalise a hand-edited QDF file")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch os.Args[1] {
	case "rewrite":
		err = runRewrite(os.Args[2:])
	case "qdf-fix":
		err = runQDFFix(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "qpdfcore: %v\n", err)
		os.Exit(2)
	}
}

func runRewrite(args []string) error {
	fs := flag.NewFlagSet("rewrite", flag.ExitOnError)
	var (
		password      = fs.String("password", "", "user/owner password to try if the document is encrypted")
		qdfMode       = fs.Bool("qdf", false, "write QDF mode output")
		linearize     = fs.Bool("linearize", false, "produce a linearised (web-optimised) file")
		objectStreams = fs.String("object-streams", string(config.ObjectStreamsPreserve), "disable|preserve|generate")
		allowRepair   = fs.Bool("repair", true, "attempt brute-force xref repair on a damaged file")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		usage()
	}
	inPath, outPath := fs.Arg(0), fs.Arg(1)

	runtime := config.NewDefaultRuntime()
	if err := runtime.Validate(); err != nil {
		return pdferr.Wrap(pdferr.CodeSystem, err, "invalid runtime configuration")
	}

	warn := warnings.NewList(runtime.MaxWarnings)
	reg := source.NewRegistry(runtime.MaxOpenFileDescriptors)
	src, err := source.OpenFile(inPath, reg)
	if err != nil {
		return pdferr.Wrap(pdferr.CodeSystem, err, "opening %s", inPath)
	}
	defer src.Close()

	arena := object.NewArena()
	table, err := xref.Load(src, arena, xref.Options{
		Context:     inPath,
		Warnings:    warn,
		ForceRepair: false,
	})
	if err != nil && *allowRepair {
		table, err = xref.Load(src, arena, xref.Options{Context: inPath, Warnings: warn, ForceRepair: true})
	}
	if err != nil {
		return pdferr.Wrap(pdferr.CodeDamagedPDF, err, "loading %s", inPath)
	}

	r := resolve.New(src, arena, table, resolve.Options{Context: inPath, Warnings: warn})

	dec, err := authenticate(r, table.Trailer, *password)
	if err != nil {
		return err
	}

	objStreamMode := config.ObjectStreamMode(*objectStreams)
	opts := config.DefaultWriterOptions()
	opts.QDFMode = *qdfMode
	opts.Linearize = *linearize
	opts.ObjectStreams = objStreamMode
	if *qdfMode {
		opts.ObjectStreams = config.ObjectStreamsDisable
		opts.StreamData = config.StreamDataUncompress
	}
	if err := opts.Validate(); err != nil {
		return pdferr.Wrap(pdferr.CodeSystem, err, "invalid writer options")
	}

	w := writer.New(writer.Input{
		Resolver:  r,
		Trailer:   table.Trailer,
		Decryptor: dec,
		Runtime:   runtime,
		Warnings:  warn,
		Context:   inPath,
	}, opts, writer.EncryptSpec{})

	out, err := os.Create(outPath)
	if err != nil {
		return pdferr.Wrap(pdferr.CodeSystem, err, "creating %s", outPath)
	}
	defer out.Close()

	if err := w.Write(out); err != nil {
		return err
	}

	reportWarnings(warn)
	os.Exit(warn.ExitCode())
	return nil
}

// authenticate resolves the trailer's /Encrypt dictionary, if present, and
// tries password against it as both user and owner password. A nil
// Decryptor and nil error means the document is unencrypted.
func authenticate(r *resolve.Resolver, trailer *object.Handle, password string) (stream.Decryptor, error) {
	encVal, has := trailer.Get("Encrypt")
	if !has || encVal.IsNull() {
		return nil, nil
	}
	encDict := encVal
	if og, isRef := encVal.Value().ReferenceTarget(); isRef {
		resolved, err := r.Resolve(og)
		if err != nil {
			return nil, pdferr.Wrap(pdferr.CodeDamagedPDF, err, "resolving /Encrypt")
		}
		encDict = resolved
	}

	id0 := trailerID0(trailer)
	dict, err := crypt.ParseDict(encDict, id0)
	if err != nil {
		return nil, pdferr.Wrap(pdferr.CodeUnsupported, err, "parsing /Encrypt dictionary")
	}
	handler, err := crypt.NewHandler(dict)
	if err != nil {
		return nil, pdferr.Wrap(pdferr.CodeUnsupported, err, "building encryption handler")
	}
	ok, _, _, err := handler.Authenticate([]byte(password))
	if err != nil {
		return nil, pdferr.Wrap(pdferr.CodePassword, err, "authenticating")
	}
	if !ok {
		return nil, pdferr.New(pdferr.CodePassword, "password did not authenticate as user or owner")
	}
	return handler, nil
}

func trailerID0(trailer *object.Handle) []byte {
	arr, ok := trailer.Get("ID")
	if !ok {
		return nil
	}
	n, ok := arr.ArrayLen()
	if !ok || n < 1 {
		return nil
	}
	e, ok := arr.ArrayGet(0)
	if !ok {
		return nil
	}
	raw, _, ok := e.Value().RawString()
	if !ok {
		return nil
	}
	return raw
}

func runQDFFix(args []string) error {
	fs := flag.NewFlagSet("qdf-fix", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		usage()
	}
	inPath, outPath := fs.Arg(0), fs.Arg(1)

	in, err := os.Open(inPath)
	if err != nil {
		return pdferr.Wrap(pdferr.CodeSystem, err, "opening %s", inPath)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return pdferr.Wrap(pdferr.CodeSystem, err, "creating %s", outPath)
	}
	defer out.Close()

	f := qdffix.NewFixer(inPath)
	if err := f.Fix(in, out); err != nil {
		return err
	}
	return nil
}

func reportWarnings(warn *warnings.List) {
	for _, w := range warn.Items() {
		fmt.Fprintln(os.Stderr, w.String())
	}
	if warn.Truncated() {
		fmt.Fprintf(os.Stderr, "... %d further warnings suppressed\n", warn.Total()-len(warn.Items()))
	}
}
