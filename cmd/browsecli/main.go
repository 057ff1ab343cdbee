// Package main provides the catalog browsing and queue CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/swingdeck/internal/api/connect"
	"github.com/osa030/swingdeck/internal/domain/catalog"
)

var (
	app    = kingpin.New("swingdeck-browsecli", "swingdeck catalog browser and queue client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Access token (or set SWINGDECK_TOKEN env)").Envar("SWINGDECK_TOKEN").String()

	// list command
	listCmd      = app.Command("list", "List one page of a resource")
	listResource = listCmd.Arg("resource", "Resource to list").Required().Enum("artists", "albums", "tracks")
	listPage     = listCmd.Flag("page", "Page number (0-based)").Default("0").Int()
	listAll      = listCmd.Flag("all", "Follow next-page cursors until the listing is exhausted").Bool()
	pageSize     = app.Flag("page-size", "Page size (default: server setting)").Int()
	sortBy       = app.Flag("sort-by", "Sort field (default: server setting)").String()
	sortDesc     = app.Flag("desc", "Sort descending").Bool()

	// play command
	playCmd   = app.Command("play", "Build a queue from a page of favorite tracks")
	playPage  = playCmd.Arg("page", "Page number (0-based)").Required().Int()
	playIndex = playCmd.Arg("index", "Index of the track on the page").Required().Int()

	// artist command
	artistCmd   = app.Command("artist", "Show an artist's tracks and discography")
	artistHash  = artistCmd.Arg("hash", "Artist hash").Required().String()
	artistGroup = artistCmd.Flag("group", "Only show one album group").Enum("albums", "singles", "compilations", "appearances")
	artistPlay  = artistCmd.Flag("play", "Queue the artist's tracks starting at this index").Default("-1").Int()

	// status command
	statusCmd = app.Command("status", "Show the current queue")

	// player command
	playerCmd     = app.Command("player", "Control the player or show its status")
	playerCommand = playerCmd.Arg("command", "Player command").Default("status").Enum("status", "play", "pause", "resume", "stop", "next", "previous")

	// watch command
	watchCmd = app.Command("watch", "Watch queue changes")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	auth := connect.WithInterceptors(apiconnect.NewTokenClientInterceptor(*token))
	browse := apiconnect.NewBrowseClient(http.DefaultClient, *server, auth)
	queue := apiconnect.NewQueueClient(http.DefaultClient, *server, auth)

	ctx := context.Background()

	switch command {
	case listCmd.FullCommand():
		list(ctx, browse, *listResource, *listPage, *listAll)
	case playCmd.FullCommand():
		play(ctx, browse, queue, *playPage, *playIndex)
	case artistCmd.FullCommand():
		artist(ctx, browse, queue, *artistHash, *artistGroup, *artistPlay)
	case statusCmd.FullCommand():
		status(ctx, queue)
	case playerCmd.FullCommand():
		player(ctx, queue, *playerCommand)
	case watchCmd.FullCommand():
		watch(ctx, queue)
	}
}

func pageRequest(resource string, page int) *apiconnect.LoadPageRequest {
	req := &apiconnect.LoadPageRequest{
		Resource: resource,
		Key:      &page,
		PageSize: *pageSize,
		SortBy:   *sortBy,
	}
	if *sortDesc {
		req.SortOrder = "desc"
	}
	return req
}

func list(ctx context.Context, client *apiconnect.BrowseClient, resource string, page int, all bool) {
	for {
		resp, err := client.LoadPage(ctx, pageRequest(resource, page))
		if err != nil {
			printError(err)
			os.Exit(1)
		}

		fmt.Printf("--- %s page %d (%d items) ---\n", resp.Resource, resp.Key, resp.Len())
		printPage(resp)

		if !all || resp.NextKey == nil {
			if resp.NextKey == nil {
				fmt.Println("(end of listing)")
			} else {
				fmt.Printf("(next page: %d)\n", *resp.NextKey)
			}
			return
		}
		page = *resp.NextKey
	}
}

func printPage(resp *apiconnect.LoadPageResponse) {
	for i, a := range resp.Artists {
		fmt.Printf("  %3d  %-40s %4d tracks  %s\n", i, a.Name, a.TrackCount, a.ArtistHash)
	}
	printAlbums(resp.Albums)
	printTracks(resp.Tracks)
}

func printAlbums(albums []catalog.Album) {
	for i, a := range albums {
		artists := ""
		for j, ar := range a.AlbumArtists {
			if j > 0 {
				artists += ", "
			}
			artists += ar.Name
		}
		fmt.Printf("  %3d  %-40s %-30s %s\n", i, a.Title, artists, a.AlbumHash)
	}
}

func printTracks(tracks []catalog.Track) {
	for i, t := range tracks {
		fmt.Printf("  %3d  %-40s %-30s %s\n", i, t.Title, t.ArtistNames(), formatDuration(t.Duration))
	}
}

var albumGroups = []struct {
	group catalog.AlbumGroup
	title string
}{
	{catalog.GroupAlbums, "Albums"},
	{catalog.GroupSinglesAndEPs, "Singles & EPs"},
	{catalog.GroupCompilations, "Compilations"},
	{catalog.GroupAppearances, "Appears on"},
}

func artist(ctx context.Context, browse *apiconnect.BrowseClient, queue *apiconnect.QueueClient, hash, group string, playIndex int) {
	info, err := browse.ArtistInfo(ctx, hash)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	fmt.Printf("=== %s ===\n", info.Artist.Name)
	fmt.Printf("--- Tracks (%d) ---\n", len(info.Tracks))
	printTracks(info.Tracks)

	only := catalog.AlbumGroup("")
	if group != "" {
		if only, err = catalog.ParseAlbumGroup(group); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}
	for _, g := range albumGroups {
		albums := info.Discography.Group(g.group)
		if (only != "" && g.group != only) || len(albums) == 0 {
			continue
		}
		fmt.Printf("--- %s (%d) ---\n", g.title, len(albums))
		printAlbums(albums)
	}

	if playIndex < 0 {
		return
	}
	state, err := queue.Recreate(ctx, &apiconnect.RecreateRequest{
		Tracks:       info.Tracks,
		ClickedIndex: playIndex,
		Origin:       &apiconnect.SourceMessage{Kind: "artist", ID: info.Artist.ArtistHash, Name: info.Artist.Name},
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	fmt.Println()
	printState(state)
}

func play(ctx context.Context, browse *apiconnect.BrowseClient, queue *apiconnect.QueueClient, page, index int) {
	resp, err := browse.LoadPage(ctx, pageRequest("tracks", page))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	state, err := queue.Recreate(ctx, &apiconnect.RecreateRequest{
		Tracks:       resp.Tracks,
		ClickedIndex: index,
		Origin:       &apiconnect.SourceMessage{Kind: "favorites"},
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	printState(state)
}

func status(ctx context.Context, client *apiconnect.QueueClient) {
	state, err := client.Current(ctx)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	printState(state)
}

func player(ctx context.Context, client *apiconnect.QueueClient, command string) {
	var (
		s   *apiconnect.PlayerStatusMessage
		err error
	)
	if command == "status" {
		s, err = client.PlayerStatus(ctx)
	} else {
		s, err = client.Control(ctx, command)
	}
	if err != nil {
		// Player refusals (nothing loaded, end of queue) are not catalog errors.
		var connectErr *connect.Error
		if errors.As(err, &connectErr) && connectErr.Code() == connect.CodeFailedPrecondition {
			fmt.Printf("Error: %s\n", connectErr.Message())
		} else {
			printError(err)
		}
		os.Exit(1)
	}

	fmt.Printf("Player: %s (generation %d, %d played)\n", s.State, s.Generation, s.Played)
	if s.Track == nil {
		return
	}
	elapsed := time.Duration(s.ElapsedMs) * time.Millisecond
	fmt.Printf("[%d/%d] %s - %s  %s", s.Index+1, s.QueueLen, s.Track.ArtistNames(), s.Track.Title, formatDuration(elapsed))
	if s.Track.Duration > 0 {
		fmt.Printf(" / %s", formatDuration(s.Track.Duration))
	}
	fmt.Println()
}

func watch(ctx context.Context, client *apiconnect.QueueClient) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := client.Watch(ctx)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer stream.Close()

	fmt.Println("Watching queue changes. Press Ctrl+C to exit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nUnsubscribing...")
		cancel()
	}()

	for stream.Receive() {
		event := stream.Msg()
		if event.Initial {
			fmt.Printf("\n[Sequence: %d] === INITIAL STATE ===\n", event.SequenceNo)
		} else {
			fmt.Printf("\n[Sequence: %d] === QUEUE CHANGED ===\n", event.SequenceNo)
		}
		printState(&event.State)
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		fmt.Printf("Stream error: %v\n", err)
	}
}

func printState(s *apiconnect.QueueStateMessage) {
	fmt.Printf("Generation: %d\n", s.Generation)
	cur := s.Current()
	if cur == nil {
		fmt.Println("Queue is empty")
		return
	}

	if s.Origin != nil {
		fmt.Printf("Source: %s (%s)\n", s.Origin.Label, s.Origin.Kind)
	}
	fmt.Printf("Now playing %s: %s - %s\n", s.Position, cur.Track.ArtistNames(), cur.Track.Title)

	upcoming := s.Entries[s.CurrentIndex+1:]
	if len(upcoming) > 0 {
		fmt.Printf("Up next (%d):\n", len(upcoming))
		for i, e := range upcoming {
			if i == 5 {
				fmt.Printf("  ... and %d more\n", len(upcoming)-i)
				break
			}
			fmt.Printf("  %s - %s\n", e.Track.ArtistNames(), e.Track.Title)
		}
	}
}

func printError(err error) {
	code := connect.CodeOf(err)
	switch code {
	case connect.CodeUnavailable:
		fmt.Printf("Error: catalog unreachable, try again: %v\n", err)
	case connect.CodeFailedPrecondition:
		fmt.Printf("Error: catalog rejected the request (check credentials): %v\n", err)
	case connect.CodeUnauthenticated:
		fmt.Println("Error: invalid or missing access token (use --token or SWINGDECK_TOKEN env)")
	default:
		fmt.Printf("Error: %v\n", err)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
