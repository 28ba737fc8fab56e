package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

// popularitySpread is the +- window around a target popularity.
const popularitySpread = 40

func (a *app) printTracks(tracks []playlist.Track) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTRACK\tARTISTS\tYEAR\tPOP\tID")
	for i, t := range tracks {
		year := "-"
		if y, ok := t.ReleaseYear(); ok {
			year = strconv.Itoa(y)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", i+1, t.Name, t.ArtistNames(), year, t.Popularity, t.ID)
	}
	_ = tw.Flush()
}

func (a *app) printStats(tracks []playlist.Track) {
	s := playlist.Summarize(tracks)
	fmt.Fprintf(a.out, "\n%d tracks, %d min, %d artists, avg popularity %.0f",
		s.Tracks, s.TotalMinutes, s.UniqueArtists, s.AvgPopularity)
	if s.ExplicitTracks > 0 {
		fmt.Fprintf(a.out, ", %d explicit", s.ExplicitTracks)
	}
	fmt.Fprintln(a.out)
}

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

// intList is a repeatable integer flag.
type intList []int

func (l *intList) String() string {
	parts := make([]string, len(*l))
	for i, n := range *l {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func (l *intList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSuffix(strings.TrimSpace(part), "s")
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("invalid decade %q", part)
		}
		*l = append(*l, n)
	}
	return nil
}
