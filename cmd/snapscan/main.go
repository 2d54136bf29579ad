package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"snapscan/internal"
	"snapscan/internal/app"
	"snapscan/internal/barcode"
	"snapscan/internal/config"
	"snapscan/internal/connectors"
	"snapscan/internal/export"
	"snapscan/internal/inbox"
	"snapscan/internal/logging"
	"snapscan/internal/pipeline"
	"snapscan/internal/scan"
	"snapscan/internal/station"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "snapscan"})
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.Open(ctx, cfg, log)
	must(err)
	defer a.Close()

	cmd := os.Args[1]
	switch cmd {
	case "list:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		listCtx := fs.String("context", "pick", "pick|receive|return")
		file := fs.String("file", "", "csv, txt, json, pdf, xlsx, html or eml file")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		res, err := a.Importer().ImportFile(ctx, parseContext(*listCtx), *file)
		must(err)
		if res.MappingAdded > 0 || res.Items == 0 {
			fmt.Printf("barcode mapping merged entries=%d\n", res.MappingAdded)
			return
		}
		for _, w := range res.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		fmt.Printf("imported context=%s items=%d format=%s strategy=%s trace=%s\n", res.Context, res.Items, res.Format, res.Strategy, res.TraceID)
	case "list:show":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		listCtx := fs.String("context", "pick", "pick|receive|return")
		_ = fs.Parse(os.Args[2:])
		doc := document(a, parseContext(*listCtx))
		fmt.Print(string(formatter(cfg).TXT(doc)))
	case "list:clear":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		listCtx := fs.String("context", "pick", "pick|receive|return")
		yes := fs.Bool("yes", false, "skip confirmation")
		_ = fs.Parse(os.Args[2:])
		engine := a.Engine(confirmer(*yes))
		cleared, err := engine.Clear(parseContext(*listCtx))
		must(err)
		if !cleared {
			fmt.Println("cancelled")
			return
		}
		fmt.Printf("cleared context=%s\n", *listCtx)
	case "scan":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		listCtx := fs.String("context", "pick", "pick|receive|return")
		qty := fs.Int("qty", 1, "units per scan (returns)")
		_ = fs.Parse(os.Args[2:])
		if fs.NArg() == 0 {
			must(fmt.Errorf("at least one barcode is required"))
		}
		engine := a.Engine(nil, station.NewTerminal(os.Stdout))
		failed := false
		for _, token := range fs.Args() {
			res, err := engine.HandleScan(token, parseContext(*listCtx), *qty)
			for _, s := range res.Suggestions {
				fmt.Printf("  similar: %s -> %s (%.0f %%)\n", s.Barcode, s.ItemID, s.Similarity*100)
			}
			if err != nil && !scan.IsRejection(err) {
				failed = true
			}
		}
		if failed {
			os.Exit(1)
		}
	case "undo":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		listCtx := fs.String("context", "pick", "pick|receive|return")
		yes := fs.Bool("yes", false, "skip confirmation")
		_ = fs.Parse(os.Args[2:])
		engine := a.Engine(confirmer(*yes), station.NewTerminal(os.Stdout))
		_, err := engine.Undo(parseContext(*listCtx))
		must(err)
	case "returns:condition":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		cond := fs.String("set", "", "condition for the next return scans: uåpnet|åpnet|skadet")
		index := fs.Int("index", -1, "change the condition of this return line instead (1-based)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*cond) == "" {
			must(fmt.Errorf("--set is required"))
		}
		c, err := internal.ParseCondition(*cond)
		must(err)
		engine := a.Engine(nil)
		if *index > 0 {
			line, err := engine.ChangeReturnCondition(*index-1, c)
			must(err)
			fmt.Printf("return line %s now %s quantity=%d\n", line.ID, line.Condition, line.Quantity)
			return
		}
		must(engine.SelectCondition(c))
		fmt.Printf("return condition=%s\n", c)
	case "returns:remove":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		index := fs.Int("index", 0, "return line (1-based)")
		_ = fs.Parse(os.Args[2:])
		removed, err := a.Engine(nil).RemoveReturnLine(*index - 1)
		must(err)
		fmt.Printf("removed %s (%s) quantity=%d\n", removed.ID, removed.Condition, removed.Quantity)
	case "barcodes:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "barcodes.json, records JSON, or GTIN catalog (csv/xlsx)")
		_ = fs.Parse(os.Args[2:])
		blob, err := os.ReadFile(*file)
		must(err)
		added, err := a.Importer().ImportBarcodes(*file, blob)
		must(err)
		fmt.Printf("barcode entries merged=%d total=%d\n", added, len(a.Store.State().Mapping))
	case "barcodes:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output file (stdout when empty)")
		_ = fs.Parse(os.Args[2:])
		blob, err := barcode.EncodeMapping(a.Store.State().Mapping)
		must(err)
		if *out == "" {
			fmt.Println(string(blob))
			return
		}
		must(os.WriteFile(*out, blob, 0o644))
		fmt.Printf("exported %d barcodes to %s\n", len(a.Store.State().Mapping), *out)
	case "barcodes:reset":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		yes := fs.Bool("yes", false, "skip confirmation")
		_ = fs.Parse(os.Args[2:])
		if !*yes && !ask("Reset the barcode mapping to the bundled set?") {
			fmt.Println("cancelled")
			return
		}
		must(a.ResetMapping())
		fmt.Printf("barcode mapping reset entries=%d\n", len(a.Store.State().Mapping))
	case "barcodes:similar":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		threshold := fs.Float64("threshold", cfg.SimilarThreshold, "minimum similarity 0..1")
		_ = fs.Parse(os.Args[2:])
		r := barcode.NewResolver(a.Store.State().Mapping)
		for _, token := range fs.Args() {
			fmt.Printf("%s -> %s\n", token, r.Resolve(token))
			for _, s := range r.FindSimilar(token, *threshold) {
				fmt.Printf("  %s -> %s (%.0f %%)\n", s.Barcode, s.ItemID, s.Similarity*100)
			}
		}
	case "weights:set":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "item id")
		weight := fs.Float64("weight", 0, "unit weight")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" || *weight <= 0 {
			must(fmt.Errorf("--id and a positive --weight are required"))
		}
		updated, err := a.Store.SetItemWeight(*id, *weight)
		must(err)
		fmt.Printf("weight %s=%g lines updated=%d\n", *id, *weight, updated)
	case "settings":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		unit := fs.String("weight-unit", "", "weight unit")
		def := fs.Float64("default-weight", 0, "weight of items without one")
		overPick := fs.String("allow-over-picking", "", "true|false")
		overScan := fs.String("allow-over-scanning", "", "true|false")
		_ = fs.Parse(os.Args[2:])
		if fs.NFlag() > 0 {
			must(a.Store.UpdateSettings(func(s *internal.Settings) {
				if *unit != "" {
					s.WeightUnit = *unit
				}
				if *def > 0 {
					s.DefaultItemWeight = *def
				}
				if *overPick != "" {
					s.AllowOverPicking = parseBool(*overPick)
				}
				if *overScan != "" {
					s.AllowOverScanning = parseBool(*overScan)
				}
			}))
		}
		blob, err := json.MarshalIndent(a.Store.State().Settings, "", "  ")
		must(err)
		fmt.Println(string(blob))
	case "export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		listCtx := fs.String("context", "pick", "pick|receive|return")
		format := fs.String("format", "csv", "json|csv|txt|html|pdf|xlsx")
		out := fs.String("out", cfg.OutputDir, "output directory")
		_ = fs.Parse(os.Args[2:])
		f, err := export.ParseFormat(*format)
		must(err)
		doc := document(a, parseContext(*listCtx))
		if len(doc.Items) == 0 {
			must(fmt.Errorf("the %s list is empty", *listCtx))
		}
		path, err := formatter(cfg).Write(*out, doc, f)
		must(err)
		fmt.Printf("exported %d lines to %s\n", len(doc.Items), path)
	case "scans:log":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		listCtx := fs.String("context", "", "pick|receive|return (all when empty)")
		limit := fs.Int("limit", 50, "rows")
		_ = fs.Parse(os.Args[2:])
		var c internal.ListContext
		if *listCtx != "" {
			c = parseContext(*listCtx)
		}
		rows, err := a.DB.ListScanEvents(c, *limit)
		must(err)
		for _, r := range rows {
			fmt.Printf("%s %-7s %-5s %-16s %-12s x%d %-15s %s\n", r.CreatedAt, r.Context, r.Action, r.Token, r.ItemID, r.Quantity, r.Outcome, r.Message)
		}
	case "imports:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "rows")
		_ = fs.Parse(os.Args[2:])
		runs, err := a.DB.ListImportRuns(*limit)
		must(err)
		for _, r := range runs {
			fmt.Printf("%s %-7s items=%d format=%s source=%s\n", r.TraceID, r.Context, r.ItemCount, r.Format, r.Source)
		}
	case "inbox:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.InboxProvider, "gmail|imap|dir")
		label := fs.String("label", cfg.InboxLabel, "mailbox/label")
		max := fs.Int("max", cfg.InboxFetchMax, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := inbox.MakeConnector(ctx, cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(a.DB, cfg.SlipRawDir, conn, log)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("inbox fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "inbox:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "only slips from this provider")
		batch := fs.Int("batch", cfg.InboxParseBatch, "batch size")
		_ = fs.Parse(os.Args[2:])
		results, err := pipeline.NewSlipProcessor(a.DB, log).ProcessPending(ctx, *batch, *provider)
		must(err)
		for _, r := range results {
			fmt.Printf("slip id=%d status=%s items=%d strategy=%s\n", r.SlipID, r.Status, r.Items, r.Strategy)
		}
		fmt.Printf("processed slips=%d\n", len(results))
	case "inbox:listen":
		svc := inbox.NewService(a.DB, cfg, a.Importer(), log)
		must(svc.Run(ctx))
	case "slips:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		status := fs.String("status", pipeline.SlipStatusParsed, "fetched|parsed|skipped|imported")
		limit := fs.Int("limit", 20, "rows")
		_ = fs.Parse(os.Args[2:])
		slips, err := a.DB.ListSlipsByStatus(*status, *limit)
		must(err)
		for _, s := range slips {
			fmt.Printf("%d %s %-8s %s %q\n", s.ID, s.ReceivedAt, s.Provider, s.Sender, s.Subject)
		}
	case "slips:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.Int("id", 0, "slip id")
		_ = fs.Parse(os.Args[2:])
		if *id == 0 {
			must(fmt.Errorf("--id is required"))
		}
		res, err := a.Importer().ImportSlip(*id)
		must(err)
		fmt.Printf("receive list replaced items=%d trace=%s\n", res.Items, res.TraceID)
	case "wipe":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		yes := fs.Bool("yes", false, "skip confirmation")
		_ = fs.Parse(os.Args[2:])
		if !*yes && !ask("Delete every list, mapping and setting?") {
			fmt.Println("cancelled")
			return
		}
		must(a.Store.Wipe())
		fmt.Println("wiped")
	default:
		usage()
		os.Exit(1)
	}
}

func document(a *app.App, listCtx internal.ListContext) export.Document {
	list, err := a.Store.State().List(listCtx)
	must(err)
	return export.NewDocument(listCtx, list.Items, a.Store.State().Settings.WeightUnit, time.Now())
}

func formatter(cfg config.Config) *export.Formatter {
	f, err := export.NewFormatter(cfg.ExportLocale)
	must(err)
	return f
}

func parseContext(value string) internal.ListContext {
	c, err := internal.ParseContext(value)
	must(err)
	return c
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on", "ja":
		return true
	}
	return false
}

func confirmer(yes bool) scan.Confirmer {
	return scan.ConfirmFunc(func(action string, c internal.ListContext) bool {
		if yes {
			return true
		}
		return ask(fmt.Sprintf("%s the %s list?", strings.ToUpper(action[:1])+action[1:], c))
	})
}

func ask(question string) bool {
	fmt.Printf("%s [y/N] ", question)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return parseBool(line) || strings.EqualFold(strings.TrimSpace(line), "y")
}

func usage() {
	fmt.Println("usage: snapscan <command>")
	fmt.Println("commands:")
	fmt.Println("  list:import --context=pick|receive|return --file=...")
	fmt.Println("  list:show --context=...")
	fmt.Println("  list:clear --context=... [--yes]")
	fmt.Println("  scan --context=... [--qty=1] BARCODE...")
	fmt.Println("  undo --context=... [--yes]")
	fmt.Println("  returns:condition --set=uåpnet|åpnet|skadet [--index=N]")
	fmt.Println("  returns:remove --index=N")
	fmt.Println("  barcodes:import --file=...")
	fmt.Println("  barcodes:export [--out=...]")
	fmt.Println("  barcodes:reset [--yes]")
	fmt.Println("  barcodes:similar [--threshold=0.7] BARCODE...")
	fmt.Println("  weights:set --id=... --weight=...")
	fmt.Println("  settings [--weight-unit=kg] [--default-weight=1] [--allow-over-picking=true] [--allow-over-scanning=true]")
	fmt.Println("  export --context=... --format=json|csv|txt|html|pdf|xlsx [--out=./out]")
	fmt.Println("  scans:log [--context=...] [--limit=50]")
	fmt.Println("  imports:list [--limit=20]")
	fmt.Println("  inbox:fetch [--provider=gmail|imap|dir] [--label=INBOX] [--max=20]")
	fmt.Println("  inbox:process [--provider=...] [--batch=20]")
	fmt.Println("  inbox:listen")
	fmt.Println("  slips:list [--status=parsed] [--limit=20]")
	fmt.Println("  slips:import --id=N")
	fmt.Println("  wipe [--yes]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
