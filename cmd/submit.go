package cmd

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/tshoemake/portfolio/internal/contact"
	"github.com/tshoemake/portfolio/internal/visibility"
)

var submitOpts struct {
	endpoint string
	topic    string
	name     string
	email    string
	message  string
	token    string
	timeout  time.Duration
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Send a contact form to a running site",
	Long: `submit runs the contact form flow from the command line: the fields are
validated locally and, when valid, posted form-encoded to the endpoint.
Pass --token when the receiving site requires human verification.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		o := submitOpts
		if o.endpoint == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			o.endpoint = cfg.Form.Endpoint
			if o.endpoint == "" {
				o.endpoint = "http://localhost:" + cfg.Server.Port + "/"
			}
		}

		topic, ok := contact.ParseTopic(o.topic)
		if !ok {
			return fmt.Errorf("unknown topic %q", o.topic)
		}

		var ch contact.Challenge
		if o.token != "" {
			ch = staticChallenge(o.token)
		}
		d := contact.NewDialog(&visibility.Flag{}, contact.NewHTTPDeliverer(o.endpoint, o.timeout),
			contact.Options{RequireVerification: o.token != ""})
		d.Open()

		view, err := d.Submit(cmd.Context(), contact.Fields{
			Topic:   topic,
			Name:    o.name,
			Email:   o.email,
			Message: o.message,
		}, ch)

		var ve *contact.ValidationError
		if errors.As(err, &ve) {
			keys := make([]string, 0, len(ve.Fields))
			for k := range ve.Fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", k, ve.Fields[k])
			}
			return errors.New("form not sent")
		}
		if err != nil {
			if view.Notice != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), view.Notice)
			}
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), view.Confirmation())
		return nil
	},
}

// staticChallenge is a verification widget that already holds its token.
type staticChallenge string

func (s staticChallenge) Ready() bool   { return true }
func (s staticChallenge) Token() string { return string(s) }
func (s staticChallenge) Reset()        {}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitOpts.endpoint, "endpoint", "", "form endpoint (default: form.endpoint, then the local site)")
	f.StringVar(&submitOpts.topic, "topic", string(contact.DefaultTopic), "inquiry topic")
	f.StringVar(&submitOpts.name, "name", "", "your name")
	f.StringVar(&submitOpts.email, "email", "", "your email address")
	f.StringVarP(&submitOpts.message, "message", "m", "", "message body")
	f.StringVar(&submitOpts.token, "token", "", "verification response token")
	f.DurationVar(&submitOpts.timeout, "timeout", 10*time.Second, "request timeout")
	rootCmd.AddCommand(submitCmd)
}
