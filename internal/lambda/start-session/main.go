package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/gamelift"
	"github.com/aws/aws-sdk-go-v2/service/gamelift/types"
	"github.com/rs/zerolog"
	"github.com/savaki/gamelift-backend/internal/di"
	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/provider"
	"github.com/savaki/gamelift-backend/internal/resource"
	"github.com/urfave/cli/v2"
)

const (
	defaultMaxPlayers = 10
	envMaxPlayers     = "GAME_SESSION_MAX_PLAYERS"
	availableSessions = "hasAvailablePlayerSessions=true"
)

type GameLiftClient interface {
	SearchGameSessions(ctx context.Context, params *gamelift.SearchGameSessionsInput, optFns ...func(*gamelift.Options)) (*gamelift.SearchGameSessionsOutput, error)
	CreateGameSession(ctx context.Context, params *gamelift.CreateGameSessionInput, optFns ...func(*gamelift.Options)) (*gamelift.CreateGameSessionOutput, error)
	DescribeGameSessions(ctx context.Context, params *gamelift.DescribeGameSessionsInput, optFns ...func(*gamelift.Options)) (*gamelift.DescribeGameSessionsOutput, error)
	CreatePlayerSession(ctx context.Context, params *gamelift.CreatePlayerSessionInput, optFns ...func(*gamelift.Options)) (*gamelift.CreatePlayerSessionOutput, error)
}

// Request is produced by the API mapping template from the authorizer claims.
type Request struct {
	PlayerID string `json:"playerId"`
}

// Response tells the game client where to connect.
type Response struct {
	IpAddress       string `json:"IpAddress"`
	Port            int32  `json:"Port"`
	PlayerSessionId string `json:"PlayerSessionId"`
	GameSessionId   string `json:"GameSessionId"`
}

type Handler struct {
	gamelift   GameLiftClient
	fleetID    string
	maxPlayers int32
	backoff    provider.Backoff
}

func NewHandler(client GameLiftClient, fleetID string, maxPlayers int32) (*Handler, error) {
	if fleetID == "" {
		return nil, fmt.Errorf("%s required", provider.EnvFleetID)
	}
	if maxPlayers <= 0 {
		maxPlayers = defaultMaxPlayers
	}
	return &Handler{
		gamelift:   client,
		fleetID:    fleetID,
		maxPlayers: maxPlayers,
		backoff: provider.Backoff{
			Initial: 250 * time.Millisecond,
			Max:     2 * time.Second,
			Timeout: 20 * time.Second,
		},
	}, nil
}

func (h *Handler) Handle(ctx context.Context, req Request) (*Response, error) {
	logger := zerolog.Ctx(ctx).With().
		Str("player_id", req.PlayerID).
		Str("fleet_id", h.fleetID).
		Logger()

	if req.PlayerID == "" {
		return nil, errors.New("playerId is required")
	}

	session, err := h.findSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		session, err = h.createSession(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("game_session_id", aws.ToString(session.GameSessionId)).Msg("Created game session")
	}

	output, err := h.gamelift.CreatePlayerSession(ctx, &gamelift.CreatePlayerSessionInput{
		GameSessionId: session.GameSessionId,
		PlayerId:      aws.String(req.PlayerID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create player session: %w", err)
	}

	ps := output.PlayerSession
	logger.Info().
		Str("game_session_id", aws.ToString(ps.GameSessionId)).
		Str("player_session_id", aws.ToString(ps.PlayerSessionId)).
		Msg("Created player session")

	return &Response{
		IpAddress:       aws.ToString(ps.IpAddress),
		Port:            aws.ToInt32(ps.Port),
		PlayerSessionId: aws.ToString(ps.PlayerSessionId),
		GameSessionId:   aws.ToString(ps.GameSessionId),
	}, nil
}

// findSession returns an active game session with a free player slot, or nil.
func (h *Handler) findSession(ctx context.Context) (*types.GameSession, error) {
	output, err := h.gamelift.SearchGameSessions(ctx, &gamelift.SearchGameSessionsInput{
		FleetId:          aws.String(h.fleetID),
		FilterExpression: aws.String(availableSessions),
		SortExpression:   aws.String("creationTimeMillis ASC"),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search game sessions: %w", err)
	}
	for i := range output.GameSessions {
		if output.GameSessions[i].Status == types.GameSessionStatusActive {
			return &output.GameSessions[i], nil
		}
	}
	return nil, nil
}

// createSession creates a game session and waits for the server process to
// activate it. Player sessions cannot join a session that is still ACTIVATING.
func (h *Handler) createSession(ctx context.Context) (*types.GameSession, error) {
	output, err := h.gamelift.CreateGameSession(ctx, &gamelift.CreateGameSessionInput{
		FleetId:                   aws.String(h.fleetID),
		MaximumPlayerSessionCount: aws.Int32(h.maxPlayers),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create game session: %w", err)
	}

	session := output.GameSession
	if session.Status == types.GameSessionStatusActive {
		return session, nil
	}

	err = provider.Poll(ctx, h.backoff, resource.Fleet, "start-session", func(ctx context.Context) (bool, string, error) {
		described, err := h.gamelift.DescribeGameSessions(ctx, &gamelift.DescribeGameSessionsInput{
			GameSessionId: session.GameSessionId,
		})
		if err != nil {
			return false, "", err
		}
		if len(described.GameSessions) == 0 {
			return false, "", fmt.Errorf("game session %s: %w", aws.ToString(session.GameSessionId), errors.ErrNotFound)
		}

		current := described.GameSessions[0]
		switch current.Status {
		case types.GameSessionStatusActive:
			session = &current
			return true, string(current.Status), nil
		case types.GameSessionStatusError, types.GameSessionStatusTerminated, types.GameSessionStatusTerminating:
			return false, "", fmt.Errorf("game session %s is %s", aws.ToString(current.GameSessionId), current.Status)
		}
		return false, string(current.Status), nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func maxPlayers() int32 {
	n, err := strconv.ParseInt(os.Getenv(envMaxPlayers), 10, 32)
	if err != nil || n <= 0 {
		return defaultMaxPlayers
	}
	return int32(n)
}

func newHandler(ctx context.Context, fleetID string) (*Handler, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewHandler(gamelift.NewFromConfig(cfg), fleetID, maxPlayers())
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "start-session").Logger()

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		// Lambda mode
		handler, err := newHandler(context.Background(), os.Getenv(provider.EnvFleetID))
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
		Name:  "start-session",
		Usage: "Place a player into a game session on the fleet",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "player-id",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "fleet-id",
				EnvVars: []string{provider.EnvFleetID},
			},
		},
		Action: func(c *cli.Context) error {
			ctx := logger.WithContext(c.Context)

			handler, err := newHandler(ctx, c.String("fleet-id"))
			if err != nil {
				return err
			}

			resp, err := handler.Handle(ctx, Request{PlayerID: c.String("player-id")})
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
