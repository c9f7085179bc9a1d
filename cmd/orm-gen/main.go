// Command orm-gen writes orm.Schema implementations for tagged model structs.
//
//	go run ./cmd/orm-gen -model ./models -output ./models/generated -module github.com/arllen133/usersvc -package models
package main

import (
	"flag"
	"fmt"
	"log"
	"path"

	"github.com/arllen133/usersvc/cmd/orm-gen/generator"
)

func main() {
	modelDir := flag.String("model", ".", "directory containing model files")
	outDir := flag.String("output", "generated", "directory to save generated files")
	modulePath := flag.String("module", "", "module path (e.g., github.com/user/project)")
	packagePath := flag.String("package", "", "package path relative to module (e.g., models)")
	flag.Parse()

	if *modulePath == "" || *packagePath == "" {
		log.Fatal("-module and -package are required")
	}

	models, err := generator.ParseModels(*modelDir)
	if err != nil {
		log.Fatalf("failed to parse models: %v", err)
	}

	for _, m := range models {
		m.ImportPath = path.Join(*modulePath, *packagePath)
		fmt.Printf("Generating schema for %s...\n", m.ModelName)
		if err := generator.GenerateFile(m, *outDir); err != nil {
			log.Fatalf("failed to generate file for %s: %v", m.ModelName, err)
		}
	}
	fmt.Println("Done.")
}
