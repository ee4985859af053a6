package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/ofbmock/internal/keys"
)

func (c *cli) keysCmd() *cobra.Command {
	keysCmd := &cobra.Command{Use: "keys", Short: "Operaciones sobre el key store"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lista las claves publicables (no vencidas)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeFn, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			list, err := store.List(ctx)
			if err != nil {
				return err
			}
			now := time.Now()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KID\tALG\tNOT_BEFORE\tNOT_AFTER\tACTIVE_WINDOW")
			for _, k := range list {
				notAfter := "-"
				if !k.NotAfter.IsZero() {
					notAfter = k.NotAfter.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n", k.KID, k.Algorithm, k.NotBefore.Format(time.RFC3339), notAfter, k.ActiveAt(now))
			}
			return tw.Flush()
		},
	}

	var alg, kid, notBefore, validity string
	rotateCmd := &cobra.Command{
		Use:   "rotate",
		Short: "Genera una clave nueva; pasa a ser la activa desde --not-before",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			nb := time.Now().UTC()
			if notBefore != "" {
				t, err := time.Parse(time.RFC3339, notBefore)
				if err != nil {
					return fmt.Errorf("--not-before: %w", err)
				}
				nb = t
			}
			var ttl time.Duration
			if validity != "" {
				d, err := time.ParseDuration(validity)
				if err != nil {
					return fmt.Errorf("--validity: %w", err)
				}
				ttl = d
			}

			store, closeFn, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			k, err := keys.Generate(alg, kid, nb, ttl)
			if err != nil {
				return err
			}
			if err := store.Insert(ctx, k); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created kid=%s alg=%s not_before=%s\n", k.KID, k.Algorithm, k.NotBefore.Format(time.RFC3339))
			return nil
		},
	}
	rotateCmd.Flags().StringVar(&alg, "alg", "PS256", "algoritmo (RS*, PS*, ES*, EdDSA)")
	rotateCmd.Flags().StringVar(&kid, "kid", "", "kid (vacío = generado)")
	rotateCmd.Flags().StringVar(&notBefore, "not-before", "", "RFC3339; default ahora")
	rotateCmd.Flags().StringVar(&validity, "validity", "", "duración de la ventana (vacío = sin vencimiento)")

	keysCmd.AddCommand(listCmd, rotateCmd)
	return keysCmd
}
