package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/rs/zerolog"
	"github.com/savaki/gamelift-backend/internal/di"
	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/provider"
	"github.com/urfave/cli/v2"
)

type CognitoClient interface {
	InitiateAuth(ctx context.Context, params *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
}

// Request is the body posted to the login route.
type Request struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Response carries the Cognito tokens. The IdToken is the bearer token for the
// start session route.
type Response struct {
	IdToken      string `json:"IdToken"`
	AccessToken  string `json:"AccessToken"`
	RefreshToken string `json:"RefreshToken"`
	TokenType    string `json:"TokenType"`
	ExpiresIn    int32  `json:"ExpiresIn"`
}

type Handler struct {
	cognito  CognitoClient
	clientID string
}

func NewHandler(cognito CognitoClient, clientID string) (*Handler, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%s required", provider.EnvUserPoolClientID)
	}
	return &Handler{
		cognito:  cognito,
		clientID: clientID,
	}, nil
}

func (h *Handler) Handle(ctx context.Context, req Request) (*Response, error) {
	logger := zerolog.Ctx(ctx).With().Str("username", req.Username).Logger()

	if req.Username == "" || req.Password == "" {
		return nil, errors.New("username and password are required")
	}

	output, err := h.cognito.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(h.clientID),
		AuthParameters: map[string]string{
			"USERNAME": req.Username,
			"PASSWORD": req.Password,
		},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Login failed")
		return nil, fmt.Errorf("login failed: %w", err)
	}

	if output.AuthenticationResult == nil {
		// a challenge such as NEW_PASSWORD_REQUIRED cannot be answered here
		logger.Warn().Str("challenge", string(output.ChallengeName)).Msg("Login requires a challenge response")
		return nil, fmt.Errorf("login requires challenge %s", output.ChallengeName)
	}

	result := output.AuthenticationResult
	logger.Info().Msg("Login succeeded")
	return &Response{
		IdToken:      aws.ToString(result.IdToken),
		AccessToken:  aws.ToString(result.AccessToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		TokenType:    aws.ToString(result.TokenType),
		ExpiresIn:    result.ExpiresIn,
	}, nil
}

func newHandler(ctx context.Context) (*Handler, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewHandler(cognitoidentityprovider.NewFromConfig(cfg), os.Getenv(provider.EnvUserPoolClientID))
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "login").Logger()

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		// Lambda mode
		handler, err := newHandler(context.Background())
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create handler")
			os.Exit(1)
		}

		wrappedHandler := func(ctx context.Context, req Request) (*Response, error) {
			ctx = logger.WithContext(ctx)
			return handler.Handle(ctx, req)
		}
		lambda.Start(wrappedHandler)
		return
	}

	// CLI mode
	app := &cli.App{
		Name:  "login",
		Usage: "Authenticate a user pool user and print the tokens",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Aliases:  []string{"p"},
				Required: true,
				EnvVars:  []string{"LOGIN_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "client-id",
				Usage:   "user pool app client id",
				EnvVars: []string{provider.EnvUserPoolClientID},
			},
		},
		Action: func(c *cli.Context) error {
			ctx := logger.WithContext(c.Context)

			cfg, err := config.LoadDefaultConfig(ctx)
			if err != nil {
				return fmt.Errorf("failed to load AWS config: %w", err)
			}
			handler, err := NewHandler(cognitoidentityprovider.NewFromConfig(cfg), c.String("client-id"))
			if err != nil {
				return err
			}

			resp, err := handler.Handle(ctx, Request{
				Username: c.String("username"),
				Password: c.String("password"),
			})
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(resp)
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
