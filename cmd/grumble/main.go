// Command grumble renders a handlebars template against a JSON or YAML
// data file.
//
// Usage:
//
//	grumble -data data.json [-partials 'partials/**/*.hbs'] [-compat] template.hbs
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v2"

	"github.com/grumblehq/grumble"
)

var (
	dataPath     = flag.String("data", "", "JSON or YAML data file")
	partialsGlob = flag.String("partials", "", "glob of partial templates, registered under their basename")
	compat       = flag.Bool("compat", false, "enable Mustache-style context fallback")
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("grumble: ")

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: grumble [-data file] [-partials glob] [-compat] template")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	source, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	tpl, err := grumble.Parse(string(source))
	if err != nil {
		log.Fatalf("%s: %s", flag.Arg(0), err)
	}

	ctx := grumble.NewEvalContext()
	ctx.Compat = *compat

	if *partialsGlob != "" {
		if err := registerPartials(ctx, *partialsGlob); err != nil {
			log.Fatal(err)
		}
	}

	var data interface{}
	if *dataPath != "" {
		data, err = loadData(*dataPath)
		if err != nil {
			log.Fatal(err)
		}
	}

	out := bufio.NewWriter(os.Stdout)
	if err := tpl.Eval(data, out, ctx); err != nil {
		log.Fatal(err)
	}
	if err := out.Flush(); err != nil {
		log.Fatal(err)
	}
}

// registers every template matching the glob under its extension-stripped
// basename
func registerPartials(ctx *grumble.EvalContext, glob string) error {
	matches, err := doublestar.FilepathGlob(glob)
	if err != nil {
		return fmt.Errorf("partials glob %q: %w", glob, err)
	}

	for _, match := range matches {
		source, err := os.ReadFile(match)
		if err != nil {
			return err
		}

		name := filepath.Base(match)
		name = strings.TrimSuffix(name, filepath.Ext(name))

		if err := ctx.RegisterPartialString(name, string(source)); err != nil {
			return fmt.Errorf("partial %s: %w", match, err)
		}
	}

	return nil
}

func loadData(path string) (interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var data interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		data = normalizeYAML(data)
	default:
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return data, nil
}

// yaml.v2 decodes mappings with interface{} keys, the value layer wants
// string-keyed maps
func normalizeYAML(data interface{}) interface{} {
	switch v := data.(type) {
	case map[interface{}]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, val := range v {
			result[fmt.Sprintf("%v", key)] = normalizeYAML(val)
		}
		return result
	case []interface{}:
		for i, item := range v {
			v[i] = normalizeYAML(item)
		}
		return v
	}

	return data
}
