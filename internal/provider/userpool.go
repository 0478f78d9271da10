package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cognito "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/rs/zerolog"
	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/resource"
)

const testUserEmail = "test@test.com"

// UserPoolDriver manages the Cognito user pool, its login client, its hosted
// domain and optional test users.
type UserPoolDriver struct {
	client CognitoClient
}

func NewUserPoolDriver(client CognitoClient) *UserPoolDriver {
	return &UserPoolDriver{client: client}
}

func (d *UserPoolDriver) Create(ctx context.Context, in Input) (map[string]string, error) {
	cfg := in.Config
	logger := zerolog.Ctx(ctx).With().Str("user_pool", cfg.UserPool.Name).Logger()

	pool, err := d.find(ctx, in.Record.ID(resource.IDUserPoolID), cfg.UserPool.Name)
	if err != nil {
		return nil, err
	}

	if pool != nil {
		logger.Info().Str("user_pool_id", aws.ToString(pool.Id)).Msg("adopting existing user pool")
	} else {
		out, err := d.client.CreateUserPool(ctx, &cognito.CreateUserPoolInput{
			PoolName: aws.String(cfg.UserPool.Name),
			Policies: &types.UserPoolPolicyType{
				PasswordPolicy: &types.PasswordPolicyType{
					MinimumLength: aws.Int32(6),
				},
			},
			Schema: []types.SchemaAttributeType{
				{
					Name:              aws.String("email"),
					AttributeDataType: types.AttributeDataTypeString,
					Mutable:           aws.Bool(true),
					Required:          aws.Bool(true),
					StringAttributeConstraints: &types.StringAttributeConstraintsType{
						MinLength: aws.String("0"),
						MaxLength: aws.String("2048"),
					},
				},
			},
			AutoVerifiedAttributes: []types.VerifiedAttributeType{types.VerifiedAttributeTypeEmail},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create user pool %s: %w", cfg.UserPool.Name, err)
		}
		if out.UserPool == nil {
			return nil, fmt.Errorf("%w: create user pool returned no pool", errors.ErrMissingIdentity)
		}
		pool = out.UserPool
		logger.Info().Str("user_pool_id", aws.ToString(pool.Id)).Msg("created user pool")
	}
	poolID := aws.ToString(pool.Id)

	clientID, err := d.ensureClient(ctx, poolID, cfg.UserPool.ClientName)
	if err != nil {
		return nil, err
	}

	domain := aws.ToString(pool.Domain)
	if domain == "" && cfg.UserPool.DomainPrefix != "" {
		domain = cfg.UserPool.DomainPrefix
		_, err := d.client.CreateUserPoolDomain(ctx, &cognito.CreateUserPoolDomainInput{
			Domain:     aws.String(domain),
			UserPoolId: aws.String(poolID),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create user pool domain %s: %w", domain, err)
		}
		logger.Info().Str("domain", domain).Msg("created user pool domain")
	}

	for _, name := range cfg.TestUserNames() {
		if err := d.ensureUser(ctx, poolID, name, cfg.UserPool.TestUserPassword); err != nil {
			return nil, err
		}
	}
	if n := cfg.UserPool.TestUsers; n > 0 {
		logger.Info().Int("count", n).Msg("created test users")
	}

	ids := map[string]string{
		resource.IDUserPoolID:       poolID,
		resource.IDUserPoolArn:      aws.ToString(pool.Arn),
		resource.IDUserPoolClientID: clientID,
	}
	if domain != "" {
		ids[resource.IDUserPoolDomain] = domain
	}
	return ids, nil
}

func (d *UserPoolDriver) ensureClient(ctx context.Context, poolID, name string) (string, error) {
	var token *string
	for {
		out, err := d.client.ListUserPoolClients(ctx, &cognito.ListUserPoolClientsInput{
			UserPoolId: aws.String(poolID),
			MaxResults: aws.Int32(60),
			NextToken:  token,
		})
		if err != nil {
			return "", fmt.Errorf("failed to list user pool clients: %w", err)
		}
		for _, c := range out.UserPoolClients {
			if aws.ToString(c.ClientName) == name {
				return aws.ToString(c.ClientId), nil
			}
		}
		if aws.ToString(out.NextToken) == "" {
			break
		}
		token = out.NextToken
	}

	out, err := d.client.CreateUserPoolClient(ctx, &cognito.CreateUserPoolClientInput{
		UserPoolId: aws.String(poolID),
		ClientName: aws.String(name),
		ExplicitAuthFlows: []types.ExplicitAuthFlowsType{
			types.ExplicitAuthFlowsTypeAllowUserPasswordAuth,
			types.ExplicitAuthFlowsTypeAllowRefreshTokenAuth,
		},
		SupportedIdentityProviders: []string{"COGNITO"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create user pool client %s: %w", name, err)
	}
	if out.UserPoolClient == nil {
		return "", fmt.Errorf("%w: create user pool client returned no client", errors.ErrMissingIdentity)
	}
	zerolog.Ctx(ctx).Info().Str("client", name).Msg("created user pool client")
	return aws.ToString(out.UserPoolClient.ClientId), nil
}

func (d *UserPoolDriver) ensureUser(ctx context.Context, poolID, name, password string) error {
	_, err := d.client.AdminCreateUser(ctx, &cognito.AdminCreateUserInput{
		UserPoolId:        aws.String(poolID),
		Username:          aws.String(name),
		TemporaryPassword: aws.String(password),
		MessageAction:     types.MessageActionTypeSuppress,
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(testUserEmail)},
		},
	})
	if err != nil && !errors.HasCode(err, "UsernameExistsException") {
		return fmt.Errorf("failed to create test user %s: %w", name, err)
	}

	_, err = d.client.AdminSetUserPassword(ctx, &cognito.AdminSetUserPasswordInput{
		UserPoolId: aws.String(poolID),
		Username:   aws.String(name),
		Password:   aws.String(password),
		Permanent:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to set password for test user %s: %w", name, err)
	}
	return nil
}

func (d *UserPoolDriver) describe(ctx context.Context, id string) (*types.UserPoolType, error) {
	out, err := d.client.DescribeUserPool(ctx, &cognito.DescribeUserPoolInput{UserPoolId: aws.String(id)})
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to describe user pool %s: %w", id, err)
	}
	return out.UserPool, nil
}

// find returns the pool with id, or failing that the first pool named name.
func (d *UserPoolDriver) find(ctx context.Context, id, name string) (*types.UserPoolType, error) {
	if id != "" {
		pool, err := d.describe(ctx, id)
		if err != nil || pool != nil {
			return pool, err
		}
	}

	var token *string
	for {
		out, err := d.client.ListUserPools(ctx, &cognito.ListUserPoolsInput{
			MaxResults: aws.Int32(60),
			NextToken:  token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list user pools: %w", err)
		}
		for _, p := range out.UserPools {
			if aws.ToString(p.Name) == name {
				return d.describe(ctx, aws.ToString(p.Id))
			}
		}
		if aws.ToString(out.NextToken) == "" {
			return nil, nil
		}
		token = out.NextToken
	}
}

// Delete removes the hosted domain, then the pool.
func (d *UserPoolDriver) Delete(ctx context.Context, in Input) error {
	pool, err := d.find(ctx, in.Record.ID(resource.IDUserPoolID), in.Config.UserPool.Name)
	if err != nil || pool == nil {
		return err
	}
	poolID := aws.ToString(pool.Id)

	if domain := aws.ToString(pool.Domain); domain != "" {
		_, err := d.client.DeleteUserPoolDomain(ctx, &cognito.DeleteUserPoolDomainInput{
			Domain:     aws.String(domain),
			UserPoolId: aws.String(poolID),
		})
		if err != nil && !errors.IsNotFound(err) {
			return fmt.Errorf("failed to delete user pool domain %s: %w", domain, err)
		}
	}

	if _, err := d.client.DeleteUserPool(ctx, &cognito.DeleteUserPoolInput{UserPoolId: aws.String(poolID)}); err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete user pool %s: %w", poolID, err)
	}
	zerolog.Ctx(ctx).Info().Str("user_pool_id", poolID).Msg("deleted user pool")
	return nil
}
