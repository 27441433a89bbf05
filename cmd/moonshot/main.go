package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/mistic0xb/moonshot-sub000/internal/chat"
	"github.com/mistic0xb/moonshot-sub000/internal/codec"
	"github.com/mistic0xb/moonshot-sub000/internal/config"
	nostrclient "github.com/mistic0xb/moonshot-sub000/internal/nostr"
	"github.com/mistic0xb/moonshot-sub000/internal/publish"
	"github.com/mistic0xb/moonshot-sub000/internal/query"
	"github.com/mistic0xb/moonshot-sub000/internal/storage"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = handleInit()
	case "version", "--version":
		fmt.Printf("moonshot %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	case "login":
		err = handleLogin(os.Args[2:])
	case "logout":
		err = handleLogout()
	case "whoami":
		err = handleWhoami()
	case "explore":
		err = handleExplore(os.Args[2:])
	case "show":
		err = handleShow(os.Args[2:])
	case "versions":
		err = handleVersions(os.Args[2:])
	case "interests":
		err = handleInterests(os.Args[2:])
	case "comments":
		err = handleComments(os.Args[2:])
	case "create":
		err = handleCreate(os.Args[2:])
	case "interest":
		err = handleInterest(os.Args[2:])
	case "comment":
		err = handleComment(os.Args[2:])
	case "retire":
		err = handleRetire(os.Args[2:])
	case "like":
		err = handleLike(os.Args[2:])
	case "export":
		err = handleExport(os.Args[2:])
	case "exports":
		err = handleExports(os.Args[2:])
	case "chat":
		err = handleChat(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("moonshot - Nostr-native moonshot board client")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  moonshot init                        Generate example configuration")
	fmt.Println("  moonshot login <nsec|hex>            Store the signing key")
	fmt.Println("  moonshot logout                      Erase the signing key")
	fmt.Println("  moonshot whoami                      Show the signing identity")
	fmt.Println("  moonshot explore [--all]             List explorable moonshots")
	fmt.Println("  moonshot show <npub:id>              Show one moonshot in full")
	fmt.Println("  moonshot versions <npub:id>          Show a moonshot's edit history")
	fmt.Println("  moonshot interests <npub:id>         List builder interests")
	fmt.Println("  moonshot comments <npub:id>          Show the comment thread")
	fmt.Println("  moonshot create --title <t> ...      Publish a new moonshot")
	fmt.Println("  moonshot interest <npub:id> ...      Express interest as a builder")
	fmt.Println("  moonshot comment <npub:id> ...       Comment (or reply) on a moonshot")
	fmt.Println("  moonshot retire <id>                 Hide one of your moonshots")
	fmt.Println("  moonshot like <npub:id>              Toggle your upvote")
	fmt.Println("  moonshot export <npub:id>            Record an Angor export")
	fmt.Println("  moonshot exports <npub:id>           List a moonshot's export records")
	fmt.Println("  moonshot chat <list|history|send|watch>")
	fmt.Println("  moonshot version                     Show version information")
	fmt.Println()
	fmt.Println("Every command accepts --config <path>; without it built-in defaults apply.")
}

func handleInit() error {
	exampleConfig, err := config.GetExampleConfig()
	if err != nil {
		return fmt.Errorf("failed to read example config: %w", err)
	}
	fmt.Print(string(exampleConfig))
	return nil
}

// loadConfig loads the config file if given, else falls back to defaults
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newFlagSet creates a command flag set with the shared --config flag
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	return fs, configPath
}

type app struct {
	cfg     *config.Config
	client  *nostrclient.Client
	queries *query.Engine
	signer  nostrclient.Signer
}

func newApp(configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	client := nostrclient.Shared(&cfg.Relays)
	return &app{
		cfg:     cfg,
		client:  client,
		queries: query.New(client, cfg),
		signer:  nostrclient.NewKeystoreSigner(nostrclient.StartKeystore()),
	}, nil
}

func (a *app) mutations() *publish.Engine {
	return publish.New(a.client, a.signer, a.cfg)
}

func (a *app) selfPubkey(ctx context.Context) (string, error) {
	return a.signer.PublicKey(ctx)
}

// parseRef resolves a "npub1...:id", "hex:id" or "30078:hex:id" argument
func parseRef(arg string) (codec.EntityRef, error) {
	if strings.Count(arg, ":") == 2 {
		return codec.ParseEntityRef(arg)
	}

	parts := strings.SplitN(arg, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return codec.EntityRef{}, fmt.Errorf("expected <npub:id> or <pubkey:id>, got %q", arg)
	}

	pubkey, err := decodePubkey(parts[0])
	if err != nil {
		return codec.EntityRef{}, err
	}
	return codec.MoonshotRef(pubkey, parts[1]), nil
}

func decodePubkey(s string) (string, error) {
	if strings.HasPrefix(s, "npub1") {
		prefix, value, err := nip19.Decode(s)
		if err != nil || prefix != "npub" {
			return "", fmt.Errorf("invalid npub: %s", s)
		}
		return value.(string), nil
	}
	if !nostrclient.IsHexPubkey(s) {
		return "", fmt.Errorf("invalid pubkey: %s", s)
	}
	return s, nil
}

func handleLogin(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: moonshot login <nsec|hex>")
	}

	ks := nostrclient.StartKeystore()
	if err := nostrclient.SaveKey(ks, args[0]); err != nil {
		return err
	}

	signer := nostrclient.NewKeystoreSigner(ks)
	pubkey, err := signer.PublicKey(context.Background())
	if err != nil {
		return err
	}

	npub, _ := nip19.EncodePublicKey(pubkey)
	fmt.Printf("Logged in as %s\n", npub)
	return nil
}

func handleLogout() error {
	if err := nostrclient.StartKeystore().Erase(); err != nil {
		return fmt.Errorf("failed to erase key: %w", err)
	}
	fmt.Println("Logged out")
	return nil
}

func handleWhoami() error {
	signer := nostrclient.NewKeystoreSigner(nostrclient.StartKeystore())
	pubkey, err := signer.PublicKey(context.Background())
	if err != nil {
		return err
	}

	npub, _ := nip19.EncodePublicKey(pubkey)
	fmt.Println(npub)
	return nil
}

func handleExplore(args []string) error {
	fs, configPath := newFlagSet("explore")
	all := fs.Bool("all", false, "Include retired moonshots")
	author := fs.String("author", "", "Only moonshots by this npub or hex pubkey")
	fs.Parse(args)

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()

	var moonshots []*codec.Moonshot
	switch {
	case *author != "":
		pubkey, err := decodePubkey(*author)
		if err != nil {
			return err
		}
		moonshots, err = a.queries.FetchMoonshotsByAuthor(ctx, pubkey)
		if err != nil {
			return err
		}
	case *all:
		moonshots, err = a.queries.FetchAllMoonshots(ctx)
	default:
		moonshots, err = a.queries.FetchMoonshots(ctx)
	}
	if err != nil {
		return err
	}

	enriched, err := a.queries.EnrichMoonshots(ctx, moonshots)
	if err != nil {
		return err
	}

	if len(enriched) == 0 {
		fmt.Println("No moonshots found.")
		return nil
	}

	for _, em := range enriched {
		m := em.Moonshot
		npub, _ := nip19.EncodePublicKey(m.Pubkey)
		fmt.Printf("%s  [%s]\n", m.Title, m.Status)
		fmt.Printf("  ref:     %s:%s\n", npub, m.ID)
		fmt.Printf("  budget:  %s sats\n", m.Budget)
		if len(m.Topics) > 0 {
			fmt.Printf("  topics:  %s\n", strings.Join(m.Topics, ", "))
		}
		fmt.Printf("  likes: %d  comments: %d  chip-ins: %d sats\n",
			em.Likes, em.CommentCount, em.ChipInTotal)
		fmt.Println()
	}
	return nil
}

func handleShow(args []string) error {
	fs, configPath := newFlagSet("show")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: moonshot show <npub:id>")
	}

	ref, err := parseRef(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()

	m, err := a.queries.FetchMoonshot(ctx, ref.Pubkey, ref.Identifier)
	if err != nil {
		return err
	}

	tally, err := a.queries.FetchReactionTally(ctx, m.Ref())
	if err != nil {
		return err
	}
	exported, err := a.queries.WasExported(ctx, m.Ref())
	if err != nil {
		return err
	}

	npub, _ := nip19.EncodePublicKey(m.Pubkey)
	fmt.Printf("%s\n", m.Title)
	fmt.Printf("  by:      %s\n", npub)
	fmt.Printf("  status:  %s\n", m.Status)
	fmt.Printf("  budget:  %s sats\n", m.Budget)
	if len(m.Topics) > 0 {
		fmt.Printf("  topics:  %s\n", strings.Join(m.Topics, ", "))
	}
	fmt.Printf("  likes:   %d\n", tally.Count)
	fmt.Printf("  created: %s\n", time.Unix(m.CreatedAt, 0).Format("2006-01-02"))
	if !m.Explorable {
		fmt.Println("  (retired)")
	}
	if exported {
		fmt.Println("  (exported to Angor)")
	}
	fmt.Println()
	fmt.Println(m.Content)
	return nil
}

func handleVersions(args []string) error {
	fs, configPath := newFlagSet("versions")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: moonshot versions <npub:id>")
	}

	ref, err := parseRef(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}

	versions, err := a.queries.FetchVersions(context.Background(), ref)
	if err != nil {
		return err
	}

	if len(versions) == 0 {
		fmt.Println("No edit history.")
		return nil
	}

	for i, v := range versions {
		fmt.Printf("#%d  %s  %s  (budget %s, status %s)\n",
			len(versions)-i,
			time.Unix(v.PublishedAt, 0).Format("2006-01-02 15:04"),
			v.Title, v.Budget, v.Status)
	}
	return nil
}

func handleInterests(args []string) error {
	fs, configPath := newFlagSet("interests")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: moonshot interests <npub:id>")
	}

	ref, err := parseRef(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}

	interests, err := a.queries.FetchInterests(context.Background(), ref)
	if err != nil {
		return err
	}

	if len(interests) == 0 {
		fmt.Println("No interests yet.")
		return nil
	}

	for _, in := range interests {
		npub, _ := nip19.EncodePublicKey(in.Pubkey)
		fmt.Printf("%s\n", npub)
		fmt.Printf("  %s\n", in.Message)
		for _, p := range in.Proofs {
			if p.Description != "" {
				fmt.Printf("  proof: %s (%s)\n", p.URL, p.Description)
			} else {
				fmt.Printf("  proof: %s\n", p.URL)
			}
		}
		fmt.Println()
	}
	return nil
}

func handleComments(args []string) error {
	fs, configPath := newFlagSet("comments")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: moonshot comments <npub:id>")
	}

	ref, err := parseRef(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}

	roots, err := a.queries.FetchComments(context.Background(), ref)
	if err != nil {
		return err
	}

	if len(roots) == 0 {
		fmt.Println("No comments yet.")
		return nil
	}

	printThread(roots, 0, a.cfg.Display.MaxThreadDepth)
	return nil
}

func printThread(comments []*codec.Comment, depth, maxDepth int) {
	if maxDepth > 0 && depth >= maxDepth {
		return
	}

	indent := strings.Repeat("  ", depth)
	for _, c := range comments {
		npub, _ := nip19.EncodePublicKey(c.Pubkey)
		fmt.Printf("%s%s  %s\n", indent, time.Unix(c.CreatedAt, 0).Format("2006-01-02 15:04"), npub)
		fmt.Printf("%s%s\n", indent, c.Content)
		if c.ChipIn > 0 {
			fmt.Printf("%schip-in: %d sats\n", indent, c.ChipIn)
		}
		printThread(c.Replies, depth+1, maxDepth)
	}
}

func handleCreate(args []string) error {
	fs, configPath := newFlagSet("create")
	title := fs.String("title", "", "Moonshot title (required)")
	content := fs.String("content", "", "Markdown body")
	budget := fs.String("budget", "", "Budget in sats, empty for TBD")
	topics := fs.String("topics", "", "Comma-separated topics")
	status := fs.String("status", "", "Initial status (default open)")
	fs.Parse(args)

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}

	draft := &codec.Moonshot{
		Title:   *title,
		Content: *content,
		Budget:  *budget,
		Status:  codec.Status(*status),
	}
	if *topics != "" {
		for _, topic := range strings.Split(*topics, ",") {
			if t := strings.TrimSpace(topic); t != "" {
				draft.Topics = append(draft.Topics, t)
			}
		}
	}

	created, err := a.mutations().CreateMoonshot(context.Background(), draft)
	if err != nil {
		return err
	}

	npub, _ := nip19.EncodePublicKey(created.Pubkey)
	fmt.Printf("Published %s:%s\n", npub, created.ID)
	return nil
}

func handleInterest(args []string) error {
	fs, configPath := newFlagSet("interest")
	message := fs.String("message", "", "Pitch message (required)")
	github := fs.String("github", "", "GitHub handle")
	proofs := fs.String("proofs", "", "Comma-separated proof-of-work URLs")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: moonshot interest <npub:id> --message <m>")
	}

	ref, err := parseRef(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}

	draft := &codec.Interest{
		Moonshot: ref,
		Message:  *message,
		Github:   *github,
	}
	if *proofs != "" {
		for _, url := range strings.Split(*proofs, ",") {
			if u := strings.TrimSpace(url); u != "" {
				draft.Proofs = append(draft.Proofs, codec.ProofLink{URL: u})
			}
		}
	}

	created, err := a.mutations().CreateInterest(context.Background(), draft)
	if err != nil {
		return err
	}
	fmt.Printf("Interest published (%s)\n", created.ID)
	return nil
}

func handleComment(args []string) error {
	fs, configPath := newFlagSet("comment")
	message := fs.String("message", "", "Comment text (required)")
	parent := fs.String("parent", "", "Parent comment id for a reply")
	chipIn := fs.Int64("chipin", 0, "Chip-in pledge in sats")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: moonshot comment <npub:id> --message <m>")
	}

	ref, err := parseRef(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}

	created, err := a.mutations().CreateComment(context.Background(), &codec.Comment{
		Moonshot: ref,
		Content:  *message,
		ParentID: *parent,
		ChipIn:   *chipIn,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Comment published (%s)\n", created.ID)
	return nil
}

func handleRetire(args []string) error {
	fs, configPath := newFlagSet("retire")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: moonshot retire <id>")
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()

	self, err := a.selfPubkey(ctx)
	if err != nil {
		return err
	}

	current, err := a.queries.FetchMoonshot(ctx, self, fs.Arg(0))
	if err != nil {
		return err
	}

	if _, err := a.mutations().RetireMoonshot(ctx, current); err != nil {
		return err
	}
	fmt.Printf("Retired %q\n", current.Title)
	return nil
}

func handleLike(args []string) error {
	fs, configPath := newFlagSet("like")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: moonshot like <npub:id>")
	}

	ref, err := parseRef(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()

	self, err := a.selfPubkey(ctx)
	if err != nil {
		return err
	}

	m, err := a.queries.FetchMoonshot(ctx, ref.Pubkey, ref.Identifier)
	if err != nil {
		return err
	}
	liked, err := a.queries.FetchUserReaction(ctx, m.Ref(), self)
	if err != nil {
		return err
	}

	nowLiked, err := a.mutations().ToggleReaction(ctx, m.Ref(), m.EventID, liked)
	if err != nil {
		return err
	}

	if nowLiked {
		fmt.Printf("Liked %q\n", m.Title)
	} else {
		fmt.Printf("Unliked %q\n", m.Title)
	}
	return nil
}

func handleExport(args []string) error {
	fs, configPath := newFlagSet("export")
	project := fs.String("project", "", "External Angor project reference")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: moonshot export <npub:id> [--project <ref>]")
	}

	ref, err := parseRef(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()

	m, err := a.queries.FetchMoonshot(ctx, ref.Pubkey, ref.Identifier)
	if err != nil {
		return err
	}

	rec, err := a.mutations().ExportMoonshot(ctx, m, *project)
	if err != nil {
		return err
	}

	fmt.Printf("Recorded export of %q (record %s)\n", m.Title, rec.ID)
	return nil
}

func handleExports(args []string) error {
	fs, configPath := newFlagSet("exports")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: moonshot exports <npub:id>")
	}

	ref, err := parseRef(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()

	records, err := a.queries.FetchExports(ctx, ref)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No export records.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%s", time.Unix(rec.CreatedAt, 0).Format("2006-01-02 15:04"))
		if rec.ProjectRef != "" {
			fmt.Printf("  project %s", rec.ProjectRef)
		}
		fmt.Println()

		origin, err := a.queries.FetchExportOrigin(ctx, rec)
		if err != nil {
			fmt.Println("  exported state no longer retrievable")
			continue
		}
		fmt.Printf("  exported as %q (budget %s, status %s)\n", origin.Title, origin.Budget, origin.Status)
	}
	return nil
}

func handleChat(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: moonshot chat <list|history|send|watch>")
	}

	sub, rest := args[0], args[1:]

	fs, configPath := newFlagSet("chat " + sub)
	peer := fs.String("peer", "", "Counterparty npub or hex pubkey")
	message := fs.String("message", "", "Message to send")
	moonshotID := fs.String("moonshot", "", "Scope to a moonshot id")
	fs.Parse(rest)

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := storage.New(ctx, &a.cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := chat.New(a.client, a.signer, store, a.cfg)

	switch sub {
	case "list":
		convs, err := svc.Conversations(ctx)
		if err != nil {
			return err
		}
		if len(convs) == 0 {
			fmt.Println("No conversations.")
			return nil
		}
		for _, c := range convs {
			npub, _ := nip19.EncodePublicKey(c.PeerPubkey)
			line := npub
			if c.MoonshotID != "" {
				line += "  (moonshot " + c.MoonshotID + ")"
			}
			fmt.Printf("%s  last %s\n", line, time.Unix(c.LastMessageAt, 0).Format("2006-01-02 15:04"))
		}
		return nil

	case "history":
		pubkey, err := requirePeer(*peer)
		if err != nil {
			return err
		}
		messages, err := svc.History(ctx, pubkey, *moonshotID)
		if err != nil {
			return err
		}
		self, _ := a.selfPubkey(ctx)
		for _, m := range messages {
			printMessage(m, self)
		}
		return nil

	case "send":
		pubkey, err := requirePeer(*peer)
		if err != nil {
			return err
		}
		if *message == "" {
			return fmt.Errorf("--message is required")
		}
		sent, err := svc.Send(ctx, &codec.ChatMessage{
			Receiver:   pubkey,
			Content:    *message,
			MoonshotID: *moonshotID,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Sent (%s)\n", sent.ID)
		return nil

	case "watch":
		pubkey, err := requirePeer(*peer)
		if err != nil {
			return err
		}

		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		feed, err := svc.Subscribe(watchCtx, pubkey, *moonshotID)
		if err != nil {
			return err
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		self, _ := a.selfPubkey(ctx)
		fmt.Println("Watching... press Ctrl+C to stop.")
		for {
			select {
			case m, ok := <-feed:
				if !ok {
					return nil
				}
				printMessage(m, self)
			case <-sigChan:
				cancel()
				return nil
			}
		}

	default:
		return fmt.Errorf("unknown chat command: %s", sub)
	}
}

func requirePeer(peer string) (string, error) {
	if peer == "" {
		return "", fmt.Errorf("--peer is required")
	}
	return decodePubkey(peer)
}

func printMessage(m *codec.ChatMessage, self string) {
	who := "them"
	if m.Sender == self {
		who = "you"
	}
	fmt.Printf("[%s] %s: %s\n", time.Unix(m.CreatedAt, 0).Format("2006-01-02 15:04"), who, m.Content)
}
