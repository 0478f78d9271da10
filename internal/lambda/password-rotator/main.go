package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	cognitotypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"
	"github.com/savaki/gamelift-backend/internal/config"
	"github.com/savaki/gamelift-backend/internal/di"
	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/provider"
	"github.com/urfave/cli/v2"
)

const (
	stageCurrent = "AWSCURRENT"
	stagePending = "AWSPENDING"

	envTestUsers      = "TEST_USERS"
	envTestUserPrefix = "TEST_USER_PREFIX"

	passwordLength = 20
)

const (
	lower   = "abcdefghijkmnopqrstuvwxyz"
	upper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digits  = "23456789"
	symbols = "!#%+-=?@^_"
)

type RotationEvent struct {
	Step               string `json:"Step"`
	SecretId           string `json:"SecretId"`
	ClientRequestToken string `json:"ClientRequestToken"`
}

// PasswordSecret is the secret layout read back when test users are created.
type PasswordSecret struct {
	Password  string `json:"password"`
	Timestamp string `json:"timestamp"`
}

type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
	UpdateSecretVersionStage(ctx context.Context, params *secretsmanager.UpdateSecretVersionStageInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretVersionStageOutput, error)
}

type CognitoClient interface {
	AdminSetUserPassword(ctx context.Context, params *cognitoidentityprovider.AdminSetUserPasswordInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminSetUserPasswordOutput, error)
	InitiateAuth(ctx context.Context, params *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
}

// Handler rotates the shared test user password. setSecret applies the pending
// password to every test user and testSecret logs in as the first of them.
type Handler struct {
	secrets  SecretsClient
	cognito  CognitoClient
	poolID   string
	clientID string
	users    []string
	now      func() time.Time
}

func NewHandler(secrets SecretsClient, cognito CognitoClient, poolID, clientID string, users []string) (*Handler, error) {
	if poolID == "" {
		return nil, fmt.Errorf("%s required", provider.EnvUserPoolID)
	}
	return &Handler{
		secrets:  secrets,
		cognito:  cognito,
		poolID:   poolID,
		clientID: clientID,
		users:    users,
		now:      time.Now,
	}, nil
}

func pick(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random index: %w", err)
	}
	return alphabet[n.Int64()], nil
}

// generatePassword returns a password that satisfies any Cognito password
// policy up to passwordLength characters.
func generatePassword() (string, error) {
	all := lower + upper + digits + symbols
	password := make([]byte, 0, passwordLength)
	for _, alphabet := range []string{lower, upper, digits, symbols} {
		c, err := pick(alphabet)
		if err != nil {
			return "", err
		}
		password = append(password, c)
	}
	for len(password) < passwordLength {
		c, err := pick(all)
		if err != nil {
			return "", err
		}
		password = append(password, c)
	}

	// shuffle so the required classes are not always first
	for i := len(password) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("failed to shuffle password: %w", err)
		}
		j := n.Int64()
		password[i], password[j] = password[j], password[i]
	}
	return string(password), nil
}

func (h *Handler) HandleRotation(ctx context.Context, event RotationEvent) error {
	logger := zerolog.Ctx(ctx).With().
		Str("step", event.Step).
		Str("secret_id", event.SecretId).
		Logger()
	ctx = logger.WithContext(ctx)

	switch event.Step {
	case "createSecret":
		return h.createSecret(ctx, event)
	case "setSecret":
		return h.setSecret(ctx, event)
	case "testSecret":
		return h.testSecret(ctx, event)
	case "finishSecret":
		return h.finishSecret(ctx, event)
	default:
		return fmt.Errorf("unknown rotation step: %s", event.Step)
	}
}

func (h *Handler) pending(ctx context.Context, event RotationEvent) (*PasswordSecret, error) {
	output, err := h.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(event.SecretId),
		VersionId:    aws.String(event.ClientRequestToken),
		VersionStage: aws.String(stagePending),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pending secret: %w", err)
	}

	var secret PasswordSecret
	if err := json.Unmarshal([]byte(aws.ToString(output.SecretString)), &secret); err != nil {
		return nil, fmt.Errorf("pending secret is not valid JSON: %w", err)
	}
	if secret.Password == "" {
		return nil, errors.New("pending secret has no password")
	}
	return &secret, nil
}

func (h *Handler) createSecret(ctx context.Context, event RotationEvent) error {
	logger := zerolog.Ctx(ctx)

	// a retried createSecret must not replace the password already staged
	if _, err := h.pending(ctx, event); err == nil {
		logger.Info().Msg("Pending version already exists")
		return nil
	} else if !errors.IsNotFound(err) {
		logger.Warn().Err(err).Msg("Unable to read pending version - creating a new one")
	}

	password, err := generatePassword()
	if err != nil {
		return err
	}

	secretJSON, err := json.Marshal(PasswordSecret{
		Password:  password,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal secret: %w", err)
	}

	_, err = h.secrets.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:           aws.String(event.SecretId),
		SecretString:       aws.String(string(secretJSON)),
		ClientRequestToken: aws.String(event.ClientRequestToken),
		VersionStages:      []string{stagePending},
	})
	if err != nil {
		return fmt.Errorf("failed to put secret value: %w", err)
	}

	logger.Info().Msg("Created pending password")
	return nil
}

func (h *Handler) setSecret(ctx context.Context, event RotationEvent) error {
	logger := zerolog.Ctx(ctx)

	secret, err := h.pending(ctx, event)
	if err != nil {
		return err
	}

	for _, user := range h.users {
		_, err := h.cognito.AdminSetUserPassword(ctx, &cognitoidentityprovider.AdminSetUserPasswordInput{
			UserPoolId: aws.String(h.poolID),
			Username:   aws.String(user),
			Password:   aws.String(secret.Password),
			Permanent:  true,
		})
		switch {
		case errors.HasCode(err, "UserNotFoundException"):
			logger.Warn().Str("username", user).Msg("Test user does not exist - skipping")
		case err != nil:
			return fmt.Errorf("failed to set password for %s: %w", user, err)
		}
	}

	logger.Info().Int("users", len(h.users)).Msg("Applied pending password")
	return nil
}

func (h *Handler) testSecret(ctx context.Context, event RotationEvent) error {
	secret, err := h.pending(ctx, event)
	if err != nil {
		return err
	}
	if h.clientID == "" || len(h.users) == 0 {
		return nil
	}

	output, err := h.cognito.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: cognitotypes.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(h.clientID),
		AuthParameters: map[string]string{
			"USERNAME": h.users[0],
			"PASSWORD": secret.Password,
		},
	})
	if err != nil {
		return fmt.Errorf("pending password rejected for %s: %w", h.users[0], err)
	}
	if output.AuthenticationResult == nil {
		return fmt.Errorf("pending password for %s requires challenge %s", h.users[0], output.ChallengeName)
	}
	return nil
}

func (h *Handler) finishSecret(ctx context.Context, event RotationEvent) error {
	logger := zerolog.Ctx(ctx)

	described, err := h.secrets.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(event.SecretId),
	})
	if err != nil {
		return fmt.Errorf("failed to describe secret: %w", err)
	}

	var current string
	for versionID, stages := range described.VersionIdsToStages {
		for _, stage := range stages {
			if stage == stageCurrent {
				current = versionID
			}
		}
	}
	if current == event.ClientRequestToken {
		logger.Info().Msg("Version already current")
		return nil
	}

	input := &secretsmanager.UpdateSecretVersionStageInput{
		SecretId:        aws.String(event.SecretId),
		VersionStage:    aws.String(stageCurrent),
		MoveToVersionId: aws.String(event.ClientRequestToken),
	}
	if current != "" {
		input.RemoveFromVersionId = aws.String(current)
	}
	if _, err := h.secrets.UpdateSecretVersionStage(ctx, input); err != nil {
		return fmt.Errorf("failed to update version stage: %w", err)
	}

	logger.Info().Str("previous_version", current).Msg("Promoted pending password")
	return nil
}

// testUsers derives the test user names the same way the user pool driver
// creates them.
func testUsers() []string {
	n, _ := strconv.Atoi(os.Getenv(envTestUsers))
	cfg := config.Defaults()
	cfg.UserPool.TestUsers = n
	if prefix := os.Getenv(envTestUserPrefix); prefix != "" {
		cfg.UserPool.TestUserPrefix = prefix
	}
	return cfg.TestUserNames()
}

func newHandler(ctx context.Context) (*Handler, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewHandler(
		secretsmanager.NewFromConfig(cfg),
		cognitoidentityprovider.NewFromConfig(cfg),
		os.Getenv(provider.EnvUserPoolID),
		os.Getenv(provider.EnvUserPoolClientID),
		testUsers(),
	)
}

func handleRotateCommand(c *cli.Context) error {
	logger := zerolog.Ctx(c.Context)

	handler, err := newHandler(c.Context)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	secretID := c.String("secret-id")
	clientRequestToken := fmt.Sprintf("manual-%d", time.Now().Unix())

	for _, step := range []string{"createSecret", "setSecret", "testSecret", "finishSecret"} {
		event := RotationEvent{
			Step:               step,
			SecretId:           secretID,
			ClientRequestToken: clientRequestToken,
		}
		if err := handler.HandleRotation(c.Context, event); err != nil {
			return fmt.Errorf("%s step failed: %w", step, err)
		}
	}

	logger.Info().Str("secret_id", secretID).Msg("Rotation completed successfully")
	return nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "password-rotator").Logger()

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		// Lambda mode
		handler, err := newHandler(context.Background())
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create handler")
			os.Exit(1)
		}

		wrappedHandler := func(ctx context.Context, event RotationEvent) error {
			ctx = logger.WithContext(ctx)
			return handler.HandleRotation(ctx, event)
		}
		lambda.Start(wrappedHandler)
		return
	}

	// CLI mode for manual rotation
	app := &cli.App{
		Name:  "password-rotator",
		Usage: "Secrets Manager rotation for the test user password",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "secret-id",
				Usage:    "Secret ID to rotate",
				Required: true,
				EnvVars:  []string{"SECRET_ID"},
			},
		},
		Action: handleRotateCommand,
	}

	if err := app.RunContext(logger.WithContext(context.Background()), os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
