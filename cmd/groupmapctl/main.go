// Command groupmapctl queries a running GroupMap API and aggregates item
// batches into marker GeoJSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/samirrijal/groupmap/internal/adapters/apiclient"
	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/geolocate"
	"github.com/samirrijal/groupmap/internal/core/mapview"
	"github.com/samirrijal/groupmap/internal/core/usecases"
	"github.com/samirrijal/groupmap/internal/pkg/logging"
)

// Globals are shared by every command.
type Globals struct {
	API      string        `help:"Base URL of the GroupMap API." default:"http://localhost:8080" env:"GROUPMAP_API"`
	Timeout  time.Duration `help:"Request timeout." default:"10s"`
	LogLevel string        `help:"Log level." default:"warn" enum:"debug,info,warn,error"`
}

func (g *Globals) client() *apiclient.Client {
	return apiclient.New(strings.TrimRight(g.API, "/"), g.Timeout)
}

type CLI struct {
	Globals

	Nearby    NearbyCmd    `cmd:"" help:"List the records closest to a point."`
	Markers   MarkersCmd   `cmd:"" help:"Aggregate the items of a type into marker GeoJSON."`
	Geolocate GeolocateCmd `cmd:"" help:"Ask the API where this machine appears to be."`
}

type NearbyCmd struct {
	Lat        float64 `required:"" help:"Latitude."`
	Lng        float64 `required:"" help:"Longitude."`
	Type       string  `help:"Involvement type. Required unless --small-groups is set."`
	SmallGroup bool    `name:"small-groups" help:"Query the small-group listing."`
	Limit      int     `help:"Maximum number of results."`
}

func (c *NearbyCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	q := geolocate.NearbyQuery{Kind: geolocate.NearbyInvolvements, Lat: c.Lat, Lng: c.Lng, InvType: c.Type, Limit: c.Limit}
	if c.SmallGroup {
		q.Kind = geolocate.NearbySmallGroups
		q.InvType = usecases.SmallGroupType
	} else if c.Type == "" {
		return fmt.Errorf("--type is required for involvement queries")
	}

	recs, err := g.client().Nearby(ctx, q)
	if err != nil {
		return err
	}
	for _, r := range recs {
		dist := "-"
		if r.Distance != nil {
			dist = fmt.Sprintf("%.0fm", *r.Distance)
		}
		fmt.Fprintf(out, "%d\t%s\t%s\n", r.ID, r.Name, dist)
	}
	return nil
}

type MarkersCmd struct {
	Type    string            `arg:"" help:"Involvement type."`
	File    string            `short:"f" type:"existingfile" help:"Aggregate this batch file instead of fetching items from the API."`
	Filter  map[string]string `short:"F" help:"Attribute filters as key=value."`
	Width   int               `default:"800" help:"Viewport width in pixels."`
	Height  int               `default:"600" help:"Viewport height in pixels."`
	MinZoom int               `default:"2" help:"Minimum zoom."`
	MaxZoom int               `default:"15" help:"Maximum zoom."`
}

func (c *MarkersCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	var items usecases.ItemLister = g.client()
	if c.File != "" {
		items = batchFile(c.File)
	}

	maps := usecases.NewMapService(items, usecases.MapConfig{
		MinZoom:                  c.MinZoom,
		MaxZoom:                  c.MaxZoom,
		Width:                    c.Width,
		Height:                   c.Height,
		SmallGroupMaxInitialZoom: 13,
	}, slog.Default())

	data, err := maps.MarkersGeoJSON(ctx, c.Type, mapview.FilterSet(c.Filter))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// batchFile lists the records of a local item batch.
type batchFile string

func (f batchFile) Items(_ context.Context, invType string) ([]domain.ItemRecord, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, err
	}
	var recs []domain.ItemRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f, err)
	}
	out := recs[:0]
	for _, r := range recs {
		if r.InvType == "" || r.InvType == invType {
			out = append(out, r)
		}
	}
	return out, nil
}

type GeolocateCmd struct{}

func (c *GeolocateCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	res, err := g.client().Geolocate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%.4f,%.4f\t%s\t%s\n", res.Lat, res.Lng, res.Type, res.Human)
	return nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("groupmapctl"),
		kong.Description("Query a GroupMap API and aggregate map markers."),
		kong.UsageOnError(),
	)
	// Logs go to stderr so command output can be piped.
	slog.SetDefault(logging.New(os.Stderr, cli.LogLevel, "text"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.BindTo(os.Stdout, (*io.Writer)(nil))
	err := kctx.Run(&cli.Globals)
	kctx.FatalIfErrorf(err)
}
