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
repenrich counts the reads of one sample against repeat elements.

Uniquely mapped reads, given as a genome-aligned BAM, are counted per element
by overlap with the annotation. Ambiguous reads, given as FASTQ, are aligned
to the pseudogenome of every element built by repenrich-setup, and each such
read is split evenly over the elements it aligned to. Exit status is 0 on
success, 2 for malformed input, 3 when an external tool is missing or fails,
and 1 otherwise.
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
	annotationPath   = flag.String("annotation", pipeline.DefaultCountOpts.AnnotationPath, "RepeatMasker annotation (.out) path given to repenrich-setup; required")
	setupDir         = flag.String("setup-dir", pipeline.DefaultCountOpts.SetupDir, "Output directory of repenrich-setup")
	alignmentBAM     = flag.String("alignment-bam", pipeline.DefaultCountOpts.AlignmentBAM, "BAM of uniquely mapped reads; required")
	fastq            = flag.String("fastq", pipeline.DefaultCountOpts.FASTQ, "FASTQ of ambiguous reads, optionally gzipped; required")
	fastq2           = flag.String("fastq2", pipeline.DefaultCountOpts.FASTQ2, "FASTQ of the second mates of -fastq; implies paired-end")
	cpus             = flag.Int("cpus", pipeline.DefaultCountOpts.CPUs, "Number of elements aligned concurrently")
	alignerThreads   = flag.Int("aligner-threads", pipeline.DefaultCountOpts.AlignerThreads, "Threads per bowtie2 process")
	outDir           = flag.String("out", pipeline.DefaultCountOpts.OutDir, "Output directory for count tables")
	uniqueCounter    = flag.String("unique-counter", pipeline.DefaultCountOpts.UniqueCounter, "Unique-mapper counter: 'bedtools' or 'native'")
	strictAnnotation = flag.Bool("strict-annotation", pipeline.DefaultCountOpts.StrictAnnotation, "Fail when rows of one element disagree on class/family")
	countInputReads  = flag.Bool("count-input-reads", pipeline.DefaultCountOpts.CountInputReads, "Count the ambiguous reads to log how many aligned nowhere")
	separator        = flag.String("separator", pipeline.DefaultCountOpts.Separator, "Annotation field separator; empty splits on whitespace")
)

func countUsage() {
	fmt.Printf("Usage: %s [OPTIONS] -annotation rmsk.out -setup-dir DIR -alignment-bam unique.bam -fastq multimap.fq\n", os.Args[0])
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = countUsage
	shutdown := grail.Init()
	if flag.NArg() != 0 {
		log.Fatalf("Unexpected positional arguments: %v", flag.Args())
	}
	ctx := vcontext.Background()
	opts := pipeline.CountOpts{
		AnnotationPath:   *annotationPath,
		SetupDir:         *setupDir,
		AlignmentBAM:     *alignmentBAM,
		FASTQ:            *fastq,
		FASTQ2:           *fastq2,
		CPUs:             *cpus,
		AlignerThreads:   *alignerThreads,
		OutDir:           *outDir,
		UniqueCounter:    *uniqueCounter,
		StrictAnnotation: *strictAnnotation,
		CountInputReads:  *countInputReads,
		Separator:        *separator,
	}
	err := pipeline.Count(ctx, &opts)
	if err != nil {
		log.Error.Printf("repenrich: %v", err)
	}
	log.Debug.Printf("exiting")
	shutdown()
	os.Exit(pipeline.ExitCode(err))
}
