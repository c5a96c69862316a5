// site-archive copies site time series between archive backends, for
// example from a CSV directory into a SQLite file, or out of a
// TimescaleDB instance into flat files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/empiricalmet/fluxlag/internal/log"
	"github.com/empiricalmet/fluxlag/internal/sitedata"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	from := flag.String("from", "", "Source store: csv:<dir>, sqlite:<file>, or a postgres:// connection string")
	to := flag.String("to", "", "Destination store, same forms as -from")
	siteList := flag.String("sites", "", "Comma-separated site names (default: every site in the source)")
	varList := flag.String("vars", "", "Comma-separated variables (default: every variable per site)")
	step := flag.Duration("step", 30*time.Minute, "Sampling interval assumed when the source records none")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("site-archive %s\n", version)
		os.Exit(0)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *from == "" || *to == "" {
		log.Errorf("Both -from and -to stores are required")
		os.Exit(1)
	}

	ctx := context.Background()
	src, err := sitedata.Open(*from, *step, log.GetSugaredLogger())
	if err != nil {
		log.Errorf("Failed to open source store: %v", err)
		os.Exit(1)
	}
	defer src.Close()

	dst, err := sitedata.Open(*to, *step, log.GetSugaredLogger())
	if err != nil {
		log.Errorf("Failed to open destination store: %v", err)
		os.Exit(1)
	}
	defer dst.Close()

	writer, ok := dst.(sitedata.Writer)
	if !ok {
		log.Errorf("Destination store %s does not accept writes", *to)
		os.Exit(1)
	}

	sites := splitList(*siteList)
	if len(sites) == 0 {
		sites, err = src.Sites(ctx)
		if err != nil {
			log.Errorf("Failed to list sites: %v", err)
			os.Exit(1)
		}
	}
	if len(sites) == 0 {
		log.Errorf("No sites found in store %s", *from)
		os.Exit(1)
	}

	copied := 0
	for _, site := range sites {
		vars := splitList(*varList)
		if len(vars) == 0 {
			vars, err = src.Vars(ctx, site)
			if err != nil {
				log.Errorf("site %s: %v", site, err)
				continue
			}
		}

		tbl, err := src.Fetch(ctx, site, vars)
		if err != nil {
			log.Errorf("site %s: %v", site, err)
			continue
		}

		// A destination failure is not per-site: stop rather than
		// churn through the rest.
		if err := writer.Put(ctx, tbl); err != nil {
			log.Errorf("site %s: failed to archive: %v", site, err)
			os.Exit(1)
		}
		copied++
		log.Infof("site %s: copied %d rows x %d variables", site, tbl.Rows(), len(tbl.Names))
	}

	log.Infof("archived %d of %d sites", copied, len(sites))
	if copied == 0 {
		os.Exit(1)
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
