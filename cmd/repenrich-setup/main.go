// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
repenrich-setup builds one pseudogenome and bowtie2 index per repeat element
of a RepeatMasker annotation. Its output directory is the -setup-dir of
repenrich.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/repenrich/pipeline"
)

var (
	annotationPath   = flag.String("annotation", pipeline.DefaultSetupOpts.AnnotationPath, "RepeatMasker annotation (.out) path; required")
	genomePath       = flag.String("genome", pipeline.DefaultSetupOpts.GenomePath, "Genome FASTA path, optionally gzipped; <genome>.fai is used when present; required")
	outDir           = flag.String("out", pipeline.DefaultSetupOpts.OutDir, "Setup output directory")
	flank            = flag.Int("flank", pipeline.DefaultSetupOpts.Flank, "Bases added on each side of a repeat copy; about half the read length")
	gap              = flag.Int("gap", pipeline.DefaultSetupOpts.Gap, "Length of the N spacer between repeat copies")
	cpus             = flag.Int("cpus", pipeline.DefaultSetupOpts.CPUs, "Number of elements built concurrently")
	strictAnnotation = flag.Bool("strict-annotation", pipeline.DefaultSetupOpts.StrictAnnotation, "Fail when rows of one element disagree on class/family")
	buildIndex       = flag.Bool("build-index", pipeline.DefaultSetupOpts.BuildIndex, "Run bowtie2-build on every pseudogenome")
	indexGenome      = flag.Bool("index-genome", pipeline.DefaultSetupOpts.IndexGenome, "Write <genome>.fai when missing and read the genome through it")
	separator        = flag.String("separator", pipeline.DefaultSetupOpts.Separator, "Annotation field separator; empty splits on whitespace")
)

func setupUsage() {
	fmt.Printf("Usage: %s [OPTIONS] -annotation rmsk.out -genome genome.fa\n", os.Args[0])
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = setupUsage
	shutdown := grail.Init()
	if flag.NArg() != 0 {
		log.Fatalf("Unexpected positional arguments: %v", flag.Args())
	}
	ctx := vcontext.Background()
	opts := pipeline.SetupOpts{
		AnnotationPath:   *annotationPath,
		GenomePath:       *genomePath,
		OutDir:           *outDir,
		Flank:            *flank,
		Gap:              *gap,
		CPUs:             *cpus,
		StrictAnnotation: *strictAnnotation,
		BuildIndex:       *buildIndex,
		IndexGenome:      *indexGenome,
		Separator:        *separator,
	}
	err := pipeline.Setup(ctx, &opts)
	if err != nil {
		log.Error.Printf("repenrich-setup: %v", err)
	}
	log.Debug.Printf("exiting")
	shutdown()
	os.Exit(pipeline.ExitCode(err))
}
