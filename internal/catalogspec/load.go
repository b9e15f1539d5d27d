package catalogspec

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/roach88/genlock/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// Catalog is a decoded catalog definition.
type Catalog struct {
	DefaultBaseURI string
	Administrators []ir.Identity
	MaxGenerations int
	Genesis        Genesis
	Generations    []Entry // generation i+1 is Generations[i]
}

// Genesis holds the configurable fields of generation 0.
type Genesis struct {
	Name    string
	BaseURI string
	Enabled bool
}

// Entry is one non-genesis tier.
type Entry struct {
	ir.GenerationSpec
	Enabled   bool
	Available bool
	Pos       token.Pos
}

// Load reads a catalog from a .cue file, or from every .cue file under a
// directory unified together.
func Load(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog: %v", err)}
	}

	files := []string{path}
	if info.IsDir() {
		files, err = FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	}

	sources := make([]source, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading %s: %v", f, err)}
		}
		sources = append(sources, source{name: f, data: data})
	}
	return build(sources)
}

// Parse decodes a catalog from a single in-memory CUE document.
func Parse(filename string, src []byte) (*Catalog, error) {
	return build([]source{{name: filename, data: src}})
}

// FindCUEFiles walks dir and returns every .cue path in lexical order.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

type source struct {
	name string
	data []byte
}

func build(sources []source) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fromCUE(ErrCodeBuildFailed, err)
	}
	v := schema.LookupPath(cue.ParsePath("#Catalog"))

	for _, src := range sources {
		user := ctx.CompileBytes(src.data, cue.Filename(src.name))
		if err := user.Err(); err != nil {
			return nil, fromCUE(ErrCodeBuildFailed, err)
		}
		v = v.Unify(user)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fromCUE(ErrCodeSchema, err)
	}
	return decode(v)
}

func decode(v cue.Value) (*Catalog, error) {
	c := &Catalog{}
	var err error

	if c.DefaultBaseURI, err = str(v, "default_base_uri"); err != nil {
		return nil, err
	}

	limit, err := field(v, "max_generations").Int64()
	if err != nil {
		return nil, fromCUE(ErrCodeSchema, err)
	}
	c.MaxGenerations = int(limit)

	admins, err := field(v, "administrators").List()
	if err != nil {
		return nil, fromCUE(ErrCodeSchema, err)
	}
	c.Administrators = []ir.Identity{}
	for admins.Next() {
		id, err := admins.Value().String()
		if err != nil {
			return nil, fromCUE(ErrCodeSchema, err)
		}
		c.Administrators = append(c.Administrators, ir.Identity(id))
	}

	gens, err := field(v, "generations").List()
	if err != nil {
		return nil, fromCUE(ErrCodeSchema, err)
	}
	for i := 0; gens.Next(); i++ {
		g := gens.Value()
		if i == 0 {
			if c.Genesis, err = decodeGenesis(g); err != nil {
				return nil, err
			}
			continue
		}
		entry, err := decodeEntry(g, i)
		if err != nil {
			return nil, err
		}
		c.Generations = append(c.Generations, entry)
	}

	if total := len(c.Generations) + 1; total > c.MaxGenerations {
		return nil, &LoadError{
			Code:    ErrCodeCatalog,
			Message: fmt.Sprintf("%d generations exceed max_generations %d", total, c.MaxGenerations),
			Pos:     field(v, "generations").Pos(),
		}
	}
	return c, nil
}

func decodeGenesis(v cue.Value) (Genesis, error) {
	var g Genesis
	var err error
	if g.Name, err = str(v, "name"); err != nil {
		return g, err
	}
	if g.BaseURI, err = str(v, "base_uri"); err != nil {
		return g, err
	}
	if g.Enabled, err = boolean(v, "enabled"); err != nil {
		return g, err
	}
	return g, nil
}

func decodeEntry(v cue.Value, index int) (Entry, error) {
	e := Entry{Pos: v.Pos()}
	var err error

	if e.Name, err = str(v, "name"); err != nil {
		return e, err
	}
	if e.BaseURI, err = str(v, "base_uri"); err != nil {
		return e, err
	}
	if e.AutoUnlock, err = boolean(v, "auto_unlock"); err != nil {
		return e, err
	}
	if e.Enabled, err = boolean(v, "enabled"); err != nil {
		return e, err
	}
	if e.Available, err = boolean(v, "available"); err != nil {
		return e, err
	}

	price, err := field(v, "price").Int(nil)
	if err != nil {
		return e, fromCUE(ErrCodeSchema, err)
	}
	if e.Price, err = ir.ParseAmount(price.String()); err != nil {
		return e, &LoadError{Code: ErrCodeSchema, Message: err.Error(), Pos: field(v, "price").Pos()}
	}

	prereqVal := field(v, "prerequisite")
	prereq, err := prereqVal.Int64()
	if err != nil {
		return e, fromCUE(ErrCodeSchema, err)
	}
	if prereq > int64(index) {
		return e, &LoadError{
			Code:    ErrCodeCatalog,
			Message: fmt.Sprintf("generation %d: prerequisite %d is not an earlier entry", index, prereq),
			Pos:     prereqVal.Pos(),
		}
	}
	e.Prerequisite = ir.GenerationID(prereq)
	return e, nil
}

// field looks up a direct child and resolves its default.
func field(v cue.Value, name string) cue.Value {
	f := v.LookupPath(cue.ParsePath(name))
	if d, ok := f.Default(); ok {
		return d
	}
	return f
}

func str(v cue.Value, name string) (string, error) {
	s, err := field(v, name).String()
	if err != nil {
		return "", fromCUE(ErrCodeSchema, err)
	}
	return s, nil
}

func boolean(v cue.Value, name string) (bool, error) {
	b, err := field(v, name).Bool()
	if err != nil {
		return false, fromCUE(ErrCodeSchema, err)
	}
	return b, nil
}
