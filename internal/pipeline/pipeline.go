// Package pipeline sequences the compiler's backend passes over one shared
// context: plan modules, link the image, encode the binary. Each stage is a
// Processor; stages keep running after a stage records diagnostics, so one
// run reports everything it can.
package pipeline

import (
	"github.com/sharpts/sharpts/internal/buildconfig"
	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/runtime"
	"github.com/sharpts/sharpts/internal/tast"
)

// Context carries everything the stages read and produce. The front end
// (lexer, parser, type checker) hands the typed modules in; the stages fill
// in the linked image and the encoded binary.
type Context struct {
	Config  *buildconfig.Config
	Modules []*tast.Module
	Catalog *runtime.Catalog
	Bag     *diag.Bag

	Image  *bytecode.Image
	Binary []byte
}

// NewContext builds a context with a default runtime catalog and an empty
// diagnostic bag.
func NewContext(cfg *buildconfig.Config, modules []*tast.Module) *Context {
	return &Context{
		Config:  cfg,
		Modules: modules,
		Catalog: runtime.Default(),
		Bag:     &diag.Bag{},
	}
}

// Processor is one pipeline stage.
type Processor interface {
	Process(ctx *Context) *Context
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline.
func (p *Pipeline) Run(initialCtx *Context) *Context {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
		// Continue on errors to collect diagnostics from all stages.
	}
	return ctx
}
