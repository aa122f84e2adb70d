package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frankonly/blockseal/api"
	"github.com/frankonly/blockseal/merkle"
)

var (
	sealCmd = &cobra.Command{
		Use:   "seal FILE",
		Short: "Seal an image and anchor its merkle root in the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			client, err := Client()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp, err := client.Seal(ctx, &api.SealRequest{Image: data})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "block:", resp.BlockHash)
			fmt.Fprintln(out, "root:", resp.Root)
			fmt.Fprintf(out, "leaves: %d (%dx%d, block size %d)\n", resp.Leaves, resp.Width, resp.Height, resp.BlockSize)

			return nil
		},
	}

	verifyCmd = &cobra.Command{
		Use:   "verify BLOCKHASH FILE",
		Short: "Verify an image against a sealed one and list the tampered blocks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := verify(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "vector:", formatVector(resp.Vector))
			if len(resp.Regions) == 0 {
				fmt.Fprintln(out, "no tampered blocks")
				return nil
			}

			fmt.Fprintf(out, "%d tampered blocks:\n", len(resp.Regions))
			for _, region := range resp.Regions {
				fmt.Fprintf(out, "  x=%d y=%d size=%d\n", region.X, region.Y, region.Size)
			}

			return nil
		},
	}

	restoreCmd = &cobra.Command{
		Use:   "restore BLOCKHASH FILE OUT",
		Short: "Restore the tampered blocks of an image and write it as PNG",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := verify(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			client, err := Client()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp, err := client.Restore(ctx, &api.RestoreRequest{BlockHash: args[0], Image: data, Vector: report.Vector})
			if err != nil {
				return err
			}

			if err := os.WriteFile(args[2], resp.Image, 0o644); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "restored %d blocks into %s\n", len(report.Regions), args[2])
			return nil
		},
	}

	blockCmd = &cobra.Command{
		Use:   "block BLOCKHASH",
		Short: "Show a ledger block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := Client()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp, err := client.GetBlock(ctx, &api.GetBlockRequest{BlockHash: args[0]})
			if err != nil {
				return err
			}

			h, tx := resp.Block.Header, resp.Block.Transaction
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "hash:", resp.Hash)
			fmt.Fprintln(out, "version:", h.Version)
			fmt.Fprintln(out, "prev:", h.PrevBlockHash)
			fmt.Fprintln(out, "root:", h.MerkleRoot)
			fmt.Fprintln(out, "time:", h.Time)
			fmt.Fprintln(out, "nonce:", h.Nonce)
			if len(tx.Handles) == 0 {
				return nil
			}

			fmt.Fprintf(out, "image: %dx%d, block size %d, %s\n", tx.Width, tx.Height, tx.BlockSize, tx.Hasher)
			for i, handle := range tx.Handles {
				fmt.Fprintf(out, "  %d %s\n", i, handle)
			}

			return nil
		},
	}
)

func verify(parent context.Context, blockHash, file string) (*api.VerifyResponse, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	client, err := Client()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	return client.Verify(ctx, &api.VerifyRequest{BlockHash: blockHash, Image: data})
}

func formatVector(v []byte) string {
	vector := make(merkle.TamperVector, len(v))
	for i, flag := range v {
		vector[i] = merkle.Flag(flag)
	}

	return vector.String()
}
