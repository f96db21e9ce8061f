// Command pipefabric runs a small demonstration query: it reads a delimited
// file, computes grouped counts and sums over the first two fields, and
// prints the incremental results to stdout.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dbis-ilm/pipefabric-go/pkg/aggr"
	"github.com/dbis-ilm/pipefabric-go/pkg/dsl"
	"github.com/dbis-ilm/pipefabric-go/pkg/logger"
	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

func main() {
	var (
		fname      = flag.String("file", "", "delimited input file (key,value per line)")
		configFile = flag.String("config", "", "optional engine configuration (YAML)")
		async      = flag.Bool("async", true, "run sources on their own goroutines")
	)
	flag.Parse()

	log := logger.New("pipefabric", "1.0")

	if *fname == "" {
		fmt.Fprintln(os.Stderr, "usage: pipefabric -file <input.csv> [-config engine.yaml]")
		os.Exit(2)
	}

	ctx := dsl.NewContext()
	defer ctx.Close()
	if *configFile != "" {
		if err := ctx.Config().LoadFile(*configFile); err != nil {
			log.Fatalf("failed to load configuration: %v", err)
		}
	}

	topology := ctx.CreateTopology()

	lines := topology.NewStreamFromFile(*fname, 0)
	parsed := dsl.Extract(lines, ',', []tuple.Kind{tuple.KindString, tuple.KindDouble})
	keyed := dsl.KeyBy(parsed, func(tp *tuple.Tuple) string { return tp.String(0) })
	dsl.GroupByTuples[string](keyed, aggr.NewSpec().Identity(0).Count(1).Sum(1)).
		Print(os.Stdout, func(tp *tuple.Tuple) string { return tp.Format(",") })

	if err := topology.Prepare(); err != nil {
		log.Fatalf("prepare failed: %v", err)
	}
	if err := topology.Start(*async); err != nil {
		log.Fatalf("start failed: %v", err)
	}
	if err := topology.Wait(); err != nil {
		log.Errorf("query finished with error: %v", err)
	}
	topology.Stop()
}
