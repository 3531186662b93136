package typewriter_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/librescoot/typewriter"
	"github.com/librescoot/typewriter/clock"
)

// Example: type into a buffer on a virtual clock and react to completion
func Example() {
	clk := clock.NewManual()
	reg := typewriter.NewRegistry[string]()
	reg.On("greeted", func() {
		fmt.Println("event: greeted")
	})

	a, err := typewriter.New(
		typewriter.WithScheduler(clk),
		typewriter.WithRegistry(reg),
		typewriter.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer a.Close()

	buf := typewriter.NewBuffer("bye")
	s, _ := a.Type(context.Background(), "hello", typewriter.Into(buf), typewriter.OnComplete("greeted"))

	clk.Advance(a.Config().Duration("bye", "hello"))
	fmt.Println(s.Wait(context.Background()), buf.Text())

	// Output:
	// event: greeted
	// <nil> hello
}

// Example: a container registered under the default selector
func Example_document() {
	clk := clock.NewManual()
	doc := typewriter.NewDocument()
	a, _ := typewriter.New(
		typewriter.WithScheduler(clk),
		typewriter.WithDocument(doc),
		typewriter.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	defer a.Close()

	if _, err := a.Type(context.Background(), "lost"); err != nil {
		fmt.Println(err)
	}

	buf := typewriter.NewBuffer("")
	doc.Register(".type-inside", buf)
	a.Type(context.Background(), "found")
	clk.Advance(a.Config().Duration("", "found"))
	fmt.Println(buf.Text())

	// Output:
	// typewriter: no container
	// found
}
