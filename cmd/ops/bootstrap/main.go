// Package main implements the bootstrap CLI that seeds the notifier's
// secrets into AWS SSM Parameter Store before the first deployment.
//
// Usage:
//
//	go run ./cmd/ops/bootstrap --env=dev --from=secrets.env
//	go run ./cmd/ops/bootstrap --env=prod --profile=ordernotify-prod --from=secrets.env --export-env
//
// The tool:
//  1. Verifies the active AWS identity with STS GetCallerIdentity.
//  2. Requires typing "yes" when --env=prod.
//  3. Validates every value in the --from dotenv file, then writes it under
//     /{env}/ordernotify/. Existing parameters are kept unless --overwrite.
//  4. With --export-env, writes a .env of *_SSM_PARAM references that the
//     worker and listener resolve at startup.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"ordernotify/internal/logging"
)

var validEnvironments = map[string]bool{
	"dev":     true,
	"staging": true,
	"prod":    true,
}

// STSClient is the subset of *sts.Client used to verify the identity.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Identity is the AWS principal the tool runs as.
type Identity struct {
	AccountID string
	ARN       string
}

func main() {
	envFlag := flag.String("env", "", "Target environment (dev/staging/prod) [required]")
	profileFlag := flag.String("profile", "", "AWS CLI profile (default: uses default credential chain)")
	regionFlag := flag.String("region", "us-east-1", "AWS region")
	fromFlag := flag.String("from", "secrets.env", "Dotenv file holding the values to seed; @path values are read from files")
	overwriteFlag := flag.Bool("overwrite", false, "Replace parameters that already exist")
	exportEnvFlag := flag.Bool("export-env", false, "Write a .env of SSM references after seeding")
	exportEnvPath := flag.String("export-env-path", ".env", "Path for the exported .env file")
	flag.Parse()

	if !validEnvironments[*envFlag] {
		fmt.Fprintf(os.Stderr, "error: --env must be dev, staging, or prod\n\n")
		flag.Usage()
		os.Exit(1)
	}

	logger := logging.New("info").Slog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, options{
		env:        *envFlag,
		profile:    *profileFlag,
		region:     *regionFlag,
		from:       *fromFlag,
		overwrite:  *overwriteFlag,
		exportPath: exportPathIf(*exportEnvFlag, *exportEnvPath),
	}, os.Stdin, logger); err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	env        string
	profile    string
	region     string
	from       string
	overwrite  bool
	exportPath string
}

func exportPathIf(enabled bool, path string) string {
	if !enabled {
		return ""
	}
	return path
}

func run(ctx context.Context, opts options, stdin io.Reader, logger *slog.Logger) error {
	values, err := ReadSource(opts.from)
	if err != nil {
		return err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.region))
	}
	if opts.profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}

	identity, err := verifyIdentity(ctx, sts.NewFromConfig(awsCfg))
	if err != nil {
		return err
	}
	logger.Info("AWS identity verified", "account_id", identity.AccountID, "arn", identity.ARN, "region", opts.region)

	if opts.env == "prod" && !confirmProduction(stdin, os.Stderr, identity) {
		fmt.Fprintln(os.Stderr, "Aborted. No changes were made.")
		return nil
	}

	seeder := &Seeder{
		Store:     NewParameterStore(ssm.NewFromConfig(awsCfg), opts.env, logger),
		Overwrite: opts.overwrite,
	}
	results, err := seeder.Seed(ctx, values)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Parameters for %s (account %s):\n%s\n", opts.env, identity.AccountID, Summary(results))

	if opts.exportPath != "" {
		if err := ExportEnv(opts.exportPath, opts.env, results); err != nil {
			return err
		}
		logger.Info(".env file exported", "path", opts.exportPath)
	}
	return nil
}

// verifyIdentity fails fast on missing or expired credentials.
func verifyIdentity(ctx context.Context, client STSClient) (Identity, error) {
	idCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := client.GetCallerIdentity(idCtx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("verifying AWS identity (STS GetCallerIdentity): %w", err)
	}
	return Identity{AccountID: aws.ToString(out.Account), ARN: aws.ToString(out.Arn)}, nil
}

// confirmProduction returns true only if the operator types "yes".
func confirmProduction(in io.Reader, out io.Writer, id Identity) bool {
	fmt.Fprintln(out, "WARNING: You are targeting the PRODUCTION environment")
	fmt.Fprintf(out, "  Account: %s\n  ARN:     %s\n", id.AccountID, id.ARN)
	fmt.Fprint(out, "Type 'yes' to continue: ")

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(scanner.Text()), "yes")
}
