package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/ofbmock/internal/canonical"
	"github.com/dropDatabas3/ofbmock/internal/config"
	"github.com/dropDatabas3/ofbmock/internal/http/server"
	"github.com/dropDatabas3/ofbmock/internal/jws"
	"github.com/dropDatabas3/ofbmock/internal/keys"
	"github.com/dropDatabas3/ofbmock/internal/util/atomicwrite"
)

type cli struct {
	configPath string
	envFile    string
	dir        string // FileStore explícito; pisa la config
	HTTP       *http.Client
}

func newRootCmd() *cobra.Command {
	c := &cli{HTTP: &http.Client{Timeout: 30 * time.Second}}

	root := &cobra.Command{
		Use:           "ofbctl",
		Short:         "Herramientas de firma JWS del mock Open Finance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.envFile != "" {
				_ = godotenv.Load(c.envFile)
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", envOr("CONFIG_PATH", ""), "ruta a config.yaml (vacío = solo env)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", "", "ruta a .env (opcional)")
	root.PersistentFlags().StringVar(&c.dir, "dir", "", "directorio de un FileStore (pisa keys.source)")

	root.AddCommand(
		c.canonicalizeCmd(),
		c.signCmd(),
		c.verifyCmd(),
		c.getCmd(),
		c.jwksCmd(),
		c.keysCmd(),
	)
	return root
}

// readInput lee el archivo indicado o stdin si no hay argumento o es "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

// openStore abre el FileStore de --dir o el store de la config.
func (c *cli) openStore(ctx context.Context) (keys.Store, func(), error) {
	if c.dir != "" {
		s, err := keys.NewFileStore(c.dir)
		return s, func() {}, err
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Keys.Source == "memory" {
		return nil, nil, errors.New("keys.source is memory: nothing persisted (use --dir or configure fs|pg|redis)")
	}
	s, closer, err := server.OpenKeyStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {
		if closer != nil {
			_ = closer()
		}
	}, nil
}

func (c *cli) canonicalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "canonicalize [file.json|-]",
		Short: "Imprime la forma canónica de un documento JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			tree, err := canonical.DecodeJSON(raw)
			if err != nil {
				return fmt.Errorf("input is not JSON: %w", err)
			}
			out, err := canonical.Canonicalize(tree)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func (c *cli) signCmd() *cobra.Command {
	var alg, kid, jwksOut string
	cmd := &cobra.Command{
		Use:   "sign [file.json|-]",
		Short: "Firma un documento JSON y emite el JWS compacto",
		Long: "Sin --dir ni --config genera una clave efímera (--alg) y, con --jwks-out,\n" +
			"escribe su JWKS para poder verificar la salida.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			tree, err := canonical.DecodeJSON(raw)
			if err != nil {
				return fmt.Errorf("input is not JSON: %w", err)
			}

			var provider keys.Provider
			var used []keys.SigningKey
			if c.dir != "" || c.configPath != "" {
				store, closeFn, err := c.openStore(ctx)
				if err != nil {
					return err
				}
				defer closeFn()
				k, err := store.ActiveKey(ctx)
				if err != nil {
					return err
				}
				provider, used = store, []keys.SigningKey{*k}
			} else {
				k, err := keys.Generate(alg, kid, time.Now().Add(-time.Minute), 0)
				if err != nil {
					return err
				}
				provider, used = keys.NewMemoryStore(*k), []keys.SigningKey{*k}
			}

			env, err := jws.NewSigner(provider).SignEntity(ctx, tree)
			if err != nil {
				return fmt.Errorf("sign (%s): %w", jws.KindOf(err), err)
			}
			if jwksOut != "" {
				b, _ := json.MarshalIndent(keys.BuildJWKS(used), "", "  ")
				if err := atomicwrite.WriteFile(jwksOut, b, 0o644); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), env.Compact())
			return nil
		},
	}
	cmd.Flags().StringVar(&alg, "alg", "PS256", "algoritmo de la clave efímera")
	cmd.Flags().StringVar(&kid, "kid", "ofbctl-dev", "kid de la clave efímera")
	cmd.Flags().StringVar(&jwksOut, "jwks-out", "", "escribir el JWKS de la clave usada en este archivo")
	return cmd
}

func (c *cli) verifyCmd() *cobra.Command {
	var jwksSrc string
	cmd := &cobra.Command{
		Use:   "verify [token|-]",
		Short: "Verifica un JWS compacto contra un JWKS e imprime el payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			set, err := c.loadJWKS(cmd.Context(), jwksSrc)
			if err != nil {
				return err
			}
			payload, err := verifyCompact(strings.TrimSpace(string(raw)), set)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		},
	}
	cmd.Flags().StringVar(&jwksSrc, "jwks", envOr("OFB_JWKS", "http://localhost:8080/oauth2/jwks"), "JWKS: URL http(s) o archivo")
	return cmd
}

func (c *cli) getCmd() *cobra.Command {
	var jwksSrc string
	var headers []string
	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "GET a un endpoint; si la respuesta está firmada la verifica e imprime el payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, args[0], nil)
			if err != nil {
				return err
			}
			for _, h := range headers {
				k, v, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("invalid header %q (use Name: value)", h)
				}
				req.Header.Set(strings.TrimSpace(k), strings.TrimSpace(v))
			}
			resp, err := c.HTTP.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !isSigned(resp.Header.Get("Content-Type")) {
				fmt.Fprintf(out, "status=%d signed=false\n%s\n", resp.StatusCode, bytes.TrimSpace(body))
				return nil
			}
			set, err := c.loadJWKS(cmd.Context(), jwksSrc)
			if err != nil {
				return err
			}
			payload, err := verifyCompact(string(body), set)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "status=%d signed=true\n%s\n", resp.StatusCode, payload)
			return nil
		},
	}
	cmd.Flags().StringVar(&jwksSrc, "jwks", envOr("OFB_JWKS", "http://localhost:8080/oauth2/jwks"), "JWKS: URL http(s) o archivo")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "header extra (Name: value), repetible")
	return cmd
}

func (c *cli) jwksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jwks",
		Short: "Imprime el JWKS del key store (--dir o config)",
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
			b, err := json.MarshalIndent(keys.BuildJWKS(list), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}
