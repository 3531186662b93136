// Package typewriter plays a typewriter animation into a text container.
//
// An Animator erases whatever the container shows, blinks a caret, then
// reveals the new text one character at a time. When the last character is
// in place it fires the session's completion event from a Registry and
// resolves the Session returned by Type:
//
//	reg := typewriter.NewRegistry[string]()
//	reg.On("greeted", func() { fmt.Println("done") })
//
//	a, err := typewriter.New(typewriter.WithRegistry(reg))
//	if err != nil {
//		return err
//	}
//	s, err := a.Type(ctx, "hello", typewriter.Into(buf), typewriter.OnComplete("greeted"))
//	if err != nil {
//		return err
//	}
//	err = s.Wait(ctx)
//
// Every session is a small state machine (idle, erasing, blinking,
// revealing, done) driven by a clock.Scheduler, so tests can run an
// animation to completion with a clock.Manual instead of wall time.
package typewriter
