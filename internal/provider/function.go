package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/rs/zerolog"
	"github.com/savaki/gamelift-backend/internal/config"
	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/resource"
)

// Environment variables handed to both functions.
const (
	EnvUserPoolID       = "USER_POOL_ID"
	EnvUserPoolClientID = "USER_POOL_APP_CLIENT_ID"
	EnvFleetID          = "GAMELIFT_FLEET_ID"
)

const (
	functionRuntime      = "provided.al2023"
	functionHandler      = "bootstrap"
	functionReadyTimeout = 5 * time.Minute
	rolePropagation      = 2 * time.Minute
)

type policyDocument struct {
	Version   string      `json:"Version"`
	Statement []statement `json:"Statement"`
}

type statement struct {
	Effect    string            `json:"Effect"`
	Action    []string          `json:"Action"`
	Resource  string            `json:"Resource,omitempty"`
	Principal map[string]string `json:"Principal,omitempty"`
}

var assumeRolePolicy = policyDocument{
	Version: "2012-10-17",
	Statement: []statement{
		{
			Effect:    "Allow",
			Action:    []string{"sts:AssumeRole"},
			Principal: map[string]string{"Service": "lambda.amazonaws.com"},
		},
	},
}

var logsStatement = statement{
	Effect:   "Allow",
	Action:   []string{"logs:CreateLogGroup", "logs:CreateLogStream", "logs:PutLogEvents"},
	Resource: "*",
}

var rolePolicies = map[resource.Kind]policyDocument{
	resource.LoginFunction: {
		Version: "2012-10-17",
		Statement: []statement{
			{Effect: "Allow", Action: []string{"cognito-idp:InitiateAuth"}, Resource: "*"},
			logsStatement,
		},
	},
	resource.StartSessionFunction: {
		Version: "2012-10-17",
		Statement: []statement{
			{
				Effect: "Allow",
				Action: []string{
					"gamelift:CreateGameSession",
					"gamelift:CreatePlayerSession",
					"gamelift:CreatePlayerSessions",
					"gamelift:DescribeGameSessionDetails",
					"gamelift:DescribeGameSessions",
					"gamelift:SearchGameSessions",
				},
				Resource: "*",
			},
			logsStatement,
		},
	},
}

var packageField = map[resource.Kind]string{
	resource.LoginFunction:        "functions.login.package",
	resource.StartSessionFunction: "functions.start_session.package",
}

func policyName(kind resource.Kind) string {
	return kind.CLIName() + "-policy"
}

// FunctionDriver manages one request handling function and its execution role.
type FunctionDriver struct {
	kind   resource.Kind
	lambda LambdaClient
	iam    IAMClient
}

func NewFunctionDriver(kind resource.Kind, lambdaClient LambdaClient, iamClient IAMClient) *FunctionDriver {
	return &FunctionDriver{
		kind:   kind,
		lambda: lambdaClient,
		iam:    iamClient,
	}
}

func (d *FunctionDriver) settings(cfg config.Config) (config.FunctionConfig, error) {
	fn, ok := cfg.Function(d.kind)
	if !ok {
		return fn, fmt.Errorf("%w: %s is not a function", errors.ErrUnknownKind, d.kind)
	}
	return fn, nil
}

func (d *FunctionDriver) Create(ctx context.Context, in Input) (map[string]string, error) {
	cfg := in.Config
	fn, err := d.settings(cfg)
	if err != nil {
		return nil, err
	}
	logger := zerolog.Ctx(ctx).With().Str("function", fn.Name).Logger()

	env := map[string]string{}
	for _, p := range []struct {
		kind resource.Kind
		key  string
		env  string
	}{
		{kind: resource.UserPool, key: resource.IDUserPoolID, env: EnvUserPoolID},
		{kind: resource.UserPool, key: resource.IDUserPoolClientID, env: EnvUserPoolClientID},
		{kind: resource.Fleet, key: resource.IDFleetID, env: EnvFleetID},
	} {
		v, err := in.prerequisite(p.kind, p.key)
		if err != nil {
			return nil, err
		}
		env[p.env] = v
	}

	roleArn, err := d.ensureRole(ctx, fn.Role)
	if err != nil {
		return nil, err
	}

	existing, err := d.get(ctx, fn.Name)
	if err != nil {
		return nil, err
	}

	// a freshly created role is not assumable by lambda for a few seconds
	roleBackoff := backoff(cfg, rolePropagation)
	roleRetryable := func(err error) bool { return errors.HasCode(err, "InvalidParameterValueException") }

	if existing != nil {
		logger.Info().Msg("updating existing function")
		err = Retry(ctx, roleBackoff, roleRetryable, func(ctx context.Context) error {
			_, err := d.lambda.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
				FunctionName: aws.String(fn.Name),
				Role:         aws.String(roleArn),
				Environment:  &types.Environment{Variables: env},
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update function %s: %w", fn.Name, err)
		}
	} else {
		code, err := os.ReadFile(fn.Package)
		if err != nil {
			return nil, &errors.ConfigurationError{Field: packageField[d.kind], Reason: err.Error()}
		}
		err = Retry(ctx, roleBackoff, roleRetryable, func(ctx context.Context) error {
			_, err := d.lambda.CreateFunction(ctx, &lambda.CreateFunctionInput{
				FunctionName: aws.String(fn.Name),
				Role:         aws.String(roleArn),
				Runtime:      types.Runtime(functionRuntime),
				Handler:      aws.String(functionHandler),
				PackageType:  types.PackageTypeZip,
				Code:         &types.FunctionCode{ZipFile: code},
				Environment:  &types.Environment{Variables: env},
				MemorySize:   aws.Int32(int32(cfg.Functions.MemorySize)),
				Timeout:      aws.Int32(int32(cfg.Functions.Timeout / time.Second)),
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create function %s: %w", fn.Name, err)
		}
		logger.Info().Msg("created function")
	}

	var functionArn string
	err = Poll(ctx, backoff(cfg, functionReadyTimeout), d.kind, OperationCreate, func(ctx context.Context) (bool, string, error) {
		conf, err := d.get(ctx, fn.Name)
		if err != nil {
			return false, "", err
		}
		if conf == nil {
			return false, "", fmt.Errorf("function %s disappeared: %w", fn.Name, errors.ErrNotFound)
		}
		functionArn = aws.ToString(conf.FunctionArn)

		if conf.State == types.StateFailed || conf.LastUpdateStatus == types.LastUpdateStatusFailed {
			return false, string(conf.State), &errors.ProviderError{
				Kind:      d.kind.String(),
				Operation: OperationCreate,
				Code:      "FunctionFailed",
				Message:   aws.ToString(conf.StateReason),
			}
		}
		ready := conf.State == types.StateActive && conf.LastUpdateStatus != types.LastUpdateStatusInProgress
		return ready, string(conf.State), nil
	})
	if err != nil {
		return nil, err
	}

	return map[string]string{
		resource.IDFunctionName: fn.Name,
		resource.IDFunctionArn:  functionArn,
		resource.IDRoleName:     fn.Role,
		resource.IDRoleArn:      roleArn,
	}, nil
}

func (d *FunctionDriver) get(ctx context.Context, name string) (*types.FunctionConfiguration, error) {
	out, err := d.lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(name)})
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get function %s: %w", name, err)
	}
	return out.Configuration, nil
}

// ensureRole returns the arn of the execution role, creating it when absent,
// and always refreshes the inline policy.
func (d *FunctionDriver) ensureRole(ctx context.Context, name string) (string, error) {
	var roleArn string

	out, err := d.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	switch {
	case err == nil:
		roleArn = aws.ToString(out.Role.Arn)
		zerolog.Ctx(ctx).Debug().Str("role", name).Msg("role already exists")

	case errors.IsNotFound(err):
		trust, err := json.Marshal(assumeRolePolicy)
		if err != nil {
			return "", err
		}
		created, err := d.iam.CreateRole(ctx, &iam.CreateRoleInput{
			RoleName:                 aws.String(name),
			AssumeRolePolicyDocument: aws.String(string(trust)),
			Description:              aws.String("execution role for " + d.kind.String()),
		})
		if err != nil {
			return "", fmt.Errorf("failed to create role %s: %w", name, err)
		}
		roleArn = aws.ToString(created.Role.Arn)
		zerolog.Ctx(ctx).Info().Str("role", name).Msg("created role")

	default:
		return "", fmt.Errorf("failed to get role %s: %w", name, err)
	}

	policy, err := json.Marshal(rolePolicies[d.kind])
	if err != nil {
		return "", err
	}
	_, err = d.iam.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(name),
		PolicyName:     aws.String(policyName(d.kind)),
		PolicyDocument: aws.String(string(policy)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put policy on role %s: %w", name, err)
	}
	return roleArn, nil
}

// Delete removes the function, then its role.
func (d *FunctionDriver) Delete(ctx context.Context, in Input) error {
	fn, err := d.settings(in.Config)
	if err != nil {
		return err
	}
	name := fn.Name
	if v := in.Record.ID(resource.IDFunctionName); v != "" {
		name = v
	}
	role := fn.Role
	if v := in.Record.ID(resource.IDRoleName); v != "" {
		role = v
	}

	if _, err := d.lambda.DeleteFunction(ctx, &lambda.DeleteFunctionInput{FunctionName: aws.String(name)}); err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to delete function %s: %w", name, err)
	}
	zerolog.Ctx(ctx).Info().Str("function", name).Msg("deleted function")

	_, err = d.iam.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
		RoleName:   aws.String(role),
		PolicyName: aws.String(policyName(d.kind)),
	})
	if err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to delete policy from role %s: %w", role, err)
	}
	if _, err := d.iam.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(role)}); err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to delete role %s: %w", role, err)
	}
	zerolog.Ctx(ctx).Info().Str("role", role).Msg("deleted role")
	return nil
}
