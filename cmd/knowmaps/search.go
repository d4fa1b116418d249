package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/knowmaps/internal/domain/geo"
	"github.com/kailas-cloud/knowmaps/internal/domain/intent"
	"github.com/kailas-cloud/knowmaps/internal/domain/place"
)

type searchFlags struct {
	user   string
	lat    float64
	lng    float64
	near   string
	kind   string
	radius int
	limit  int
}

type searchOutput struct {
	IntentID      string           `json:"intent_id"`
	State         string           `json:"state"`
	Kind          intent.Kind      `json:"kind"`
	Source        intent.Source    `json:"source,omitempty"`
	Ranked        bool             `json:"ranked"`
	Results       []intent.Result  `json:"results"`
	SelectedPlace *place.Candidate `json:"selected_place,omitempty"`
	Error         string           `json:"error,omitempty"`
}

func newSearchCmd(c *cli) *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search [flags] CAPTION...",
		Short: "Run one orchestrated search and print the results as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := f.intent(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return c.runSearch(cmd, f.user, in)
		},
	}
	cmd.Flags().StringVar(&f.user, "user", "", "user id whose profile ranks the results (required)")
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "destination latitude")
	cmd.Flags().Float64Var(&f.lng, "lng", 0, "destination longitude")
	cmd.Flags().StringVar(&f.near, "near", intent.CurrentLocation, "destination name")
	cmd.Flags().StringVar(&f.kind, "kind", "", "force an intent kind (search, place, location, define, autocomplete_taste)")
	cmd.Flags().IntVar(&f.radius, "radius", 0, "search radius in meters")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum results")
	return cmd
}

func (f searchFlags) intent(caption string) (*intent.Intent, error) {
	if strings.TrimSpace(f.user) == "" {
		return nil, errors.New("--user is required")
	}
	var kind intent.Kind
	if f.kind != "" {
		k, err := intent.ParseKind(f.kind)
		if err != nil {
			return nil, err
		}
		kind = k
	}
	return intent.New(
		intent.Request{Caption: caption, Kind: kind, Radius: f.radius, Limit: f.limit},
		intent.Context{Destination: intent.Destination{
			Name:       f.near,
			Coordinate: geo.Coordinate{Lat: f.lat, Lng: f.lng},
		}},
	), nil
}

func (c *cli) runSearch(cmd *cobra.Command, userID string, in *intent.Intent) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Close(closeCtx)
	}()

	searchErr := a.search.Search(ctx, userID, in)

	out := searchOutput{
		IntentID:      in.ID,
		State:         in.State.String(),
		Kind:          in.Request.Kind,
		Source:        in.Fulfillment.Source,
		Ranked:        in.Fulfillment.Ranked,
		Results:       in.Fulfillment.Results,
		SelectedPlace: in.Fulfillment.SelectedPlace,
	}
	if out.Results == nil {
		out.Results = []intent.Result{}
	}
	if searchErr != nil {
		out.Error = searchErr.Error()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	if searchErr != nil {
		return fmt.Errorf("search: %w", searchErr)
	}
	return nil
}
