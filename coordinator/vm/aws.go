package vm

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/pkg/errors"
)

// Verification scripts run through the stock SSM shell document.
const runShellScriptDocument = "AWS-RunShellScript"

// AWSPool drives EC2 workers and executes commands on them over SSM.
type AWSPool struct {
	ec2 *ec2.Client
	ssm *ssm.Client
}

var _ Pool = (*AWSPool)(nil)

// NewAWSPool builds a pool from the ambient AWS configuration chain.
func NewAWSPool(ctx context.Context) (*AWSPool, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not load AWS configuration")
	}
	return &AWSPool{
		ec2: ec2.NewFromConfig(cfg),
		ssm: ssm.NewFromConfig(cfg),
	}, nil
}

// Start powers on the worker instance.
func (p *AWSPool) Start(ctx context.Context, instanceID string) error {
	if _, err := p.ec2.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{instanceID},
	}); err != nil {
		return errors.Wrapf(err, "could not start worker %s", instanceID)
	}
	return nil
}

// IsRunning probes the instance state.
func (p *AWSPool) IsRunning(ctx context.Context, instanceID string) (bool, error) {
	out, err := p.ec2.DescribeInstanceStatus(ctx, &ec2.DescribeInstanceStatusInput{
		InstanceIds:         []string{instanceID},
		IncludeAllInstances: aws.Bool(true),
	})
	if err != nil {
		return false, errors.Wrapf(err, "could not describe worker %s", instanceID)
	}
	for _, st := range out.InstanceStatuses {
		if st.InstanceState != nil && st.InstanceState.Name == ec2types.InstanceStateNameRunning {
			return true, nil
		}
	}
	return false, nil
}

// RunCommand submits a shell script to the worker.
func (p *AWSPool) RunCommand(ctx context.Context, instanceID string, commands []string) (string, error) {
	out, err := p.ssm.SendCommand(ctx, &ssm.SendCommandInput{
		DocumentName: aws.String(runShellScriptDocument),
		InstanceIds:  []string{instanceID},
		Parameters:   map[string][]string{"commands": commands},
	})
	if err != nil {
		return "", errors.Wrapf(err, "could not send command to worker %s", instanceID)
	}
	if out.Command == nil || out.Command.CommandId == nil {
		return "", errors.Errorf("no command id returned by worker %s", instanceID)
	}
	return *out.Command.CommandId, nil
}

// FetchOutput retrieves the invocation state and combined stdout/stderr.
func (p *AWSPool) FetchOutput(ctx context.Context, commandID, instanceID string) (*CommandOutput, error) {
	out, err := p.ssm.GetCommandInvocation(ctx, &ssm.GetCommandInvocationInput{
		CommandId:  aws.String(commandID),
		InstanceId: aws.String(instanceID),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not fetch command %s output from worker %s", commandID, instanceID)
	}
	return &CommandOutput{
		State:  commandState(out.Status),
		Output: aws.ToString(out.StandardOutputContent) + aws.ToString(out.StandardErrorContent),
	}, nil
}

// Stop powers off the worker instance.
func (p *AWSPool) Stop(ctx context.Context, instanceID string) error {
	if _, err := p.ec2.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{instanceID},
	}); err != nil {
		return errors.Wrapf(err, "could not stop worker %s", instanceID)
	}
	return nil
}

func commandState(status ssmtypes.CommandInvocationStatus) CommandState {
	switch status {
	case ssmtypes.CommandInvocationStatusPending, ssmtypes.CommandInvocationStatusDelayed:
		return StatePending
	case ssmtypes.CommandInvocationStatusInProgress:
		return StateInProgress
	case ssmtypes.CommandInvocationStatusSuccess:
		return StateSuccess
	default:
		return StateFailed
	}
}
