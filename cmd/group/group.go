package group

import (
	"context"
	"encoding/json"
	"io"

	"github.com/dream-factory-code/go-tolar/internal/client"
	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/group"
	"github.com/dream-factory-code/go-tolar/internal/ledger/txmanager"
	"github.com/dream-factory-code/go-tolar/internal/util/command"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("group",
		newMutationCommand(group.MutationAdd, "Locks the group and adds participants"),
		newMutationCommand(group.MutationRemove, "Locks the group and removes one participant"),
		newMutationCommand(group.MutationLock, "Locks the group"),
		newMutationCommand(group.MutationUnlock, "Unlocks the group"),
		newMutationCommand(group.MutationCreate, "Adds the initial participants of a new group"),
	)
}

type options struct {
	keys         command.KeyFlags
	groupID      string
	enclaveKey   string
	participants []string
	wait         bool
}

type output struct {
	GroupID string          `json:"groupId"`
	Hash    ledger.Hash     `json:"hash"`
	Sender  ledger.Address  `json:"sender"`
	Receipt *ledger.Receipt `json:"receipt,omitempty"`
}

func newMutationCommand(mutation group.Mutation, short string) *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   string(mutation),
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			return command.WithClient(cmd.Context(), cfg, func(ctx context.Context, c *client.Client) error {
				out, err := o.run(ctx, cmd, c, mutation)

				return writeOutput(cmd.OutOrStdout(), out, err)
			})
		},
	}

	o.keys.Register(cmd)

	cmd.Flags().StringVar(&o.groupID, "group-id", "", "base64 privacy group id")
	cmd.Flags().StringVar(&o.enclaveKey, "enclave-key", "", "base64 enclave key of the signing member")
	if mutation == group.MutationAdd || mutation == group.MutationCreate || mutation == group.MutationRemove {
		cmd.Flags().StringSliceVar(&o.participants, "participant", nil, "base64 enclave key of a participant (repeatable)")
	}
	cmd.Flags().BoolVar(&o.wait, "wait", false, "wait for the mutation receipt")

	_ = cmd.MarkFlagRequired("group-id")
	_ = cmd.MarkFlagRequired("enclave-key")

	return cmd
}

func (o *options) run(ctx context.Context, cmd *cobra.Command, c *client.Client, mutation group.Mutation) (*output, error) {
	key, err := o.keys.Load(cmd, c.Config.KeyStore)
	if err != nil {
		return nil, err
	}

	s, err := c.NewSigner(key)
	if err != nil {
		return nil, err
	}

	req := group.Request{
		GroupID:      o.groupID,
		Signer:       s,
		EnclaveKey:   o.enclaveKey,
		Participants: o.participants,
	}

	var pending *txmanager.PendingTransaction

	switch mutation {
	case group.MutationAdd:
		pending, err = c.Orchestrator.AddParticipants(ctx, req)
	case group.MutationRemove:
		if len(o.participants) != 1 {
			return nil, errors.New("remove takes exactly one --participant")
		}
		pending, err = c.Orchestrator.RemoveParticipant(ctx, req, o.participants[0])
	case group.MutationLock, group.MutationUnlock:
		pending, err = c.Orchestrator.SetLockState(ctx, req, mutation == group.MutationLock)
	case group.MutationCreate:
		pending, err = c.Orchestrator.CreateGroup(ctx, req)
	default:
		return nil, errors.Errorf("unknown group mutation %q", mutation)
	}
	if err != nil {
		return nil, err
	}

	out := &output{GroupID: o.groupID, Hash: pending.Hash, Sender: pending.Sender}

	if o.wait {
		if out.Receipt, err = c.Orchestrator.WaitForReceipt(ctx, pending.Hash); err != nil {
			return out, errors.Wrap(err, "failed to confirm group mutation")
		}
	}

	return out, nil
}

// writeOutput prints out even when err is set, so a mutation whose receipt
// did not confirm still reports the hash to re-poll with.
func writeOutput(w io.Writer, out *output, err error) error {
	if out != nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if encErr := enc.Encode(out); encErr != nil && err == nil {
			return encErr
		}
	}

	return err
}
