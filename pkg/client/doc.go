/*
Package client provides Go clients for the Bandstand relay's WebSocket
channels: a long-running Producer for the music bot, a Subscriber for
dashboard tooling, and one-shot helpers used by the CLI.

# Producer

The producer keeps its channel open across relay restarts. Every state
change is cached, and on each (re)connect the full cached state is sent
first, so the relay converges without the bot tracking what was lost:

	url, _ := client.EndpointURL("localhost:5000", client.ProducerPath)

	cfg := client.DefaultProducerConfig(url)
	cfg.OnCommand = func(cmd types.Command) {
		player.Handle(cmd) // play, skip, volume, ...
	}

	p := client.NewProducer(cfg)
	go p.Run(ctx)

	p.SendState(types.Patch{"status": json.RawMessage(`"online"`)})
	p.SendSong(&types.Track{Title: "Never Gonna Give You Up"})
	p.SendLog(types.LogLevelInfo, "Joined voice channel")

Log entries are not cached; SendLog returns ErrNotConnected while the relay
is unreachable. ResendInterval (default 30s) periodically re-sends the
cached state as a safety net.

Only one producer is connected at a time. Connecting a second one, including
PushState and PushLog, supersedes the first.

# Subscriber

	err := client.Watch(ctx, subURL, func(ev *events.Event) error {
		fmt.Println(ev.Type, string(ev.Data))
		return nil
	})

Subscribe returns a connection that can also submit commands:

	sub, _ := client.Subscribe(ctx, subURL)
	cmd, _ := types.NewCommand(types.CommandVolume, 40)
	sub.SendCommand(cmd) // answered by a command-result event
*/
package client
