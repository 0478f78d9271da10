package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/gamelift"
	"github.com/aws/aws-sdk-go-v2/service/gamelift/types"
	"github.com/rs/zerolog"
	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/resource"
)

// FleetDriver creates an on-demand fleet from the recorded build and waits for
// it to become ACTIVE.
type FleetDriver struct {
	client GameLiftClient
}

func NewFleetDriver(client GameLiftClient) *FleetDriver {
	return &FleetDriver{client: client}
}

func fleetIdentifiers(fleet *types.FleetAttributes) map[string]string {
	return map[string]string{
		resource.IDFleetID:  aws.ToString(fleet.FleetId),
		resource.IDFleetArn: aws.ToString(fleet.FleetArn),
	}
}

func (d *FleetDriver) Create(ctx context.Context, in Input) (map[string]string, error) {
	cfg := in.Config
	logger := zerolog.Ctx(ctx).With().Str("fleet", cfg.Fleet.Name).Logger()

	buildID, err := in.prerequisite(resource.Build, resource.IDBuildID)
	if err != nil {
		return nil, err
	}

	// the build may still be processing if it was adopted from an earlier run
	err = Poll(ctx, backoff(cfg, cfg.Build.Timeout), resource.Build, OperationCreate, func(ctx context.Context) (bool, string, error) {
		out, err := d.client.DescribeBuild(ctx, &gamelift.DescribeBuildInput{BuildId: aws.String(buildID)})
		if err != nil {
			return false, "", err
		}
		switch out.Build.Status {
		case types.BuildStatusReady:
			return true, string(out.Build.Status), nil
		case types.BuildStatusFailed:
			return false, string(out.Build.Status), &errors.DependencyUnsatisfiedError{
				Kind:         resource.Fleet.String(),
				Prerequisite: resource.Build.String(),
				Status:       string(out.Build.Status),
			}
		}
		return false, string(out.Build.Status), nil
	})
	if err != nil {
		return nil, err
	}

	fleet, err := d.find(ctx, in.Record.ID(resource.IDFleetID), cfg.Fleet.Name)
	if err != nil {
		return nil, err
	}

	if fleet != nil && fleet.Status == types.FleetStatusError {
		return nil, &errors.ProviderError{
			Kind:      resource.Fleet.String(),
			Operation: OperationCreate,
			Code:      "FleetError",
			Message:   fmt.Sprintf("existing fleet %s is in status ERROR; delete it before retrying", aws.ToString(fleet.FleetId)),
		}
	}

	if fleet != nil {
		logger.Info().Str("fleet_id", aws.ToString(fleet.FleetId)).Str("status", string(fleet.Status)).Msg("adopting existing fleet")
	} else {
		out, err := d.client.CreateFleet(ctx, &gamelift.CreateFleetInput{
			Name:            aws.String(cfg.Fleet.Name),
			Description:     aws.String(cfg.Fleet.Description),
			BuildId:         aws.String(buildID),
			EC2InstanceType: types.EC2InstanceType(cfg.Fleet.InstanceType),
			FleetType:       types.FleetTypeOnDemand,
			EC2InboundPermissions: []types.IpPermission{
				{
					FromPort: aws.Int32(int32(cfg.Fleet.Port)),
					ToPort:   aws.Int32(int32(cfg.Fleet.Port)),
					IpRange:  aws.String("0.0.0.0/0"),
					Protocol: types.IpProtocolUdp,
				},
			},
			RuntimeConfiguration: &types.RuntimeConfiguration{
				ServerProcesses: []types.ServerProcess{
					{
						LaunchPath:           aws.String(cfg.Fleet.LaunchPath),
						Parameters:           aws.String(cfg.Fleet.LaunchParameters),
						ConcurrentExecutions: aws.Int32(int32(cfg.Fleet.ConcurrentProcesses)),
					},
				},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create fleet %s: %w", cfg.Fleet.Name, err)
		}
		if out.FleetAttributes == nil {
			return nil, fmt.Errorf("%w: create fleet returned no attributes", errors.ErrMissingIdentity)
		}
		fleet = out.FleetAttributes
		logger.Info().Str("fleet_id", aws.ToString(fleet.FleetId)).Msg("created fleet")
	}

	fleetID := aws.ToString(fleet.FleetId)
	err = Poll(ctx, backoff(cfg, cfg.Fleet.Timeout), resource.Fleet, OperationCreate, func(ctx context.Context) (bool, string, error) {
		attrs, err := d.describe(ctx, fleetID)
		if err != nil {
			return false, "", err
		}
		if attrs == nil {
			return false, "", fmt.Errorf("fleet %s disappeared: %w", fleetID, errors.ErrNotFound)
		}
		fleet = attrs
		logger.Debug().Str("status", string(attrs.Status)).Msg("waiting for fleet")

		switch attrs.Status {
		case types.FleetStatusActive:
			return true, string(attrs.Status), nil
		case types.FleetStatusError, types.FleetStatusTerminated, types.FleetStatusDeleting:
			return false, string(attrs.Status), &errors.ProviderError{
				Kind:      resource.Fleet.String(),
				Operation: OperationCreate,
				Code:      "Fleet" + string(attrs.Status),
				Message:   fmt.Sprintf("fleet %s entered status %s", fleetID, attrs.Status),
				Hint:      "check the fleet events in the GameLift console",
			}
		}
		return false, string(attrs.Status), nil
	})
	if err != nil {
		return nil, err
	}

	return fleetIdentifiers(fleet), nil
}

func (d *FleetDriver) describe(ctx context.Context, fleetID string) (*types.FleetAttributes, error) {
	out, err := d.client.DescribeFleetAttributes(ctx, &gamelift.DescribeFleetAttributesInput{
		FleetIds: []string{fleetID},
	})
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to describe fleet %s: %w", fleetID, err)
	}
	if len(out.FleetAttributes) == 0 {
		return nil, nil
	}
	return &out.FleetAttributes[0], nil
}

// find returns the live fleet with id, or failing that the first live fleet
// named name.
func (d *FleetDriver) find(ctx context.Context, id, name string) (*types.FleetAttributes, error) {
	live := func(f *types.FleetAttributes) bool {
		return f != nil && f.Status != types.FleetStatusTerminated && f.Status != types.FleetStatusDeleting
	}

	if id != "" {
		fleet, err := d.describe(ctx, id)
		if err != nil {
			return nil, err
		}
		if live(fleet) {
			return fleet, nil
		}
	}

	var token *string
	for {
		out, err := d.client.DescribeFleetAttributes(ctx, &gamelift.DescribeFleetAttributesInput{NextToken: token})
		if err != nil {
			return nil, fmt.Errorf("failed to list fleets: %w", err)
		}
		for i := range out.FleetAttributes {
			fleet := &out.FleetAttributes[i]
			if aws.ToString(fleet.Name) == name && live(fleet) {
				return fleet, nil
			}
		}
		if aws.ToString(out.NextToken) == "" {
			return nil, nil
		}
		token = out.NextToken
	}
}

// Delete requests fleet deletion and waits until GameLift reports it gone.
func (d *FleetDriver) Delete(ctx context.Context, in Input) error {
	cfg := in.Config
	fleet, err := d.find(ctx, in.Record.ID(resource.IDFleetID), cfg.Fleet.Name)
	if err != nil {
		return err
	}
	if fleet == nil {
		return nil
	}

	fleetID := aws.ToString(fleet.FleetId)
	if _, err := d.client.DeleteFleet(ctx, &gamelift.DeleteFleetInput{FleetId: aws.String(fleetID)}); err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete fleet %s: %w", fleetID, err)
	}
	zerolog.Ctx(ctx).Info().Str("fleet_id", fleetID).Msg("deleting fleet")

	return Poll(ctx, backoff(cfg, cfg.Fleet.Timeout), resource.Fleet, OperationDelete, func(ctx context.Context) (bool, string, error) {
		attrs, err := d.describe(ctx, fleetID)
		if err != nil {
			return false, "", err
		}
		if attrs == nil || attrs.Status == types.FleetStatusTerminated {
			return true, string(types.FleetStatusTerminated), nil
		}
		return false, string(attrs.Status), nil
	})
}
