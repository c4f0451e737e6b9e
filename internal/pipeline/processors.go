package pipeline

import (
	"os"
	"path/filepath"

	"github.com/sharpts/sharpts/internal/linker"
)

// LinkProcessor runs the whole emitter core (closure analysis, module
// planning, union synthesis, emission, linking) and leaves the image on
// the context.
type LinkProcessor struct{}

func (LinkProcessor) Process(ctx *Context) *Context {
	ctx.Image = linker.Link(ctx.Modules, ctx.Catalog, ctx.Bag)
	return ctx
}

// EmbedProcessor resolves the config's embed globs and attaches each
// matched file to the image's resource section, keyed by its path relative
// to the config's directory.
type EmbedProcessor struct {
	// BaseDir is the directory globs resolve against; empty means the
	// current working directory.
	BaseDir string
}

func (p EmbedProcessor) Process(ctx *Context) *Context {
	if ctx.Image == nil || ctx.Config == nil {
		return ctx
	}
	for _, pattern := range ctx.Config.Embed {
		matches, err := filepath.Glob(filepath.Join(p.BaseDir, pattern))
		if err != nil {
			continue // a malformed pattern embeds nothing
		}
		for _, m := range matches {
			data, err := os.ReadFile(m)
			if err != nil {
				continue
			}
			rel, err := filepath.Rel(p.BaseDir, m)
			if err != nil {
				rel = m
			}
			ctx.Image.Resources[filepath.ToSlash(rel)] = data
		}
	}
	return ctx
}

// EncodeProcessor serializes the linked image into the binary the CLI
// writes to disk. Skipped when linking produced no image.
type EncodeProcessor struct{}

func (EncodeProcessor) Process(ctx *Context) *Context {
	if ctx.Image == nil {
		return ctx
	}
	data, err := ctx.Image.Encode()
	if err != nil {
		// an encode failure is a compiler bug, not a user source error
		panic("pipeline: encode image: " + err.Error())
	}
	ctx.Binary = data
	return ctx
}
