package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// metricPutter is the subset of the CloudWatch client used here.
type metricPutter interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
	PutDashboard(ctx context.Context, params *cloudwatch.PutDashboardInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error)
}

var (
	cwMu        sync.RWMutex
	cwClient    metricPutter
	cwNamespace = "Salesflow"
	cwDashboard = "Salesflow"
)

// CloudWatchOptions configures metric publishing.
type CloudWatchOptions struct {
	Region          string
	Namespace       string
	Dashboard       string
	AccessKeyID     string
	SecretAccessKey string
}

// InitCloudWatch creates the CloudWatch client. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain. On
// failure a warning is logged and publishing stays disabled.
func InitCloudWatch(ctx context.Context, opts CloudWatchOptions) {
	log := GetLogger().WithComponent("cloudwatch")

	region := opts.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	loadOpts := []func(*config.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	cwMu.Lock()
	cwClient = cloudwatch.NewFromConfig(cfg)
	if opts.Namespace != "" {
		cwNamespace = opts.Namespace
	}
	if opts.Dashboard != "" {
		cwDashboard = opts.Dashboard
	}
	namespace := cwNamespace
	cwMu.Unlock()

	log.WithFields(Fields{"region": region, "namespace": namespace}).Info("initialized CloudWatch client")

	CreateDefaultDashboard(ctx)
}

func setMetricClient(client metricPutter) {
	cwMu.Lock()
	cwClient = client
	cwMu.Unlock()
}

func publishMetrics(ctx context.Context, data []cwtypes.MetricDatum) {
	cwMu.RLock()
	client, namespace := cwClient, cwNamespace
	cwMu.RUnlock()

	if client == nil || len(data) == 0 {
		return
	}

	log := GetLogger().WithComponent("cloudwatch")
	if _, err := client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(namespace),
		MetricData: data,
	}); err != nil {
		log.WithError(err).Warn("failed to publish CloudWatch metrics")
		return
	}

	names := make([]string, 0, len(data))
	for _, datum := range data {
		if datum.MetricName != nil {
			names = append(names, *datum.MetricName)
		}
	}

	log.WithField("metrics", strings.Join(names, ",")).Debug("published metrics to CloudWatch")
}

// CreateDefaultDashboard puts a dashboard with the cycle and request metrics.
// Failures are logged only.
func CreateDefaultDashboard(ctx context.Context) {
	cwMu.RLock()
	client, namespace, dashboard := cwClient, cwNamespace, cwDashboard
	cwMu.RUnlock()
	if client == nil {
		return
	}

	body := fmt.Sprintf(`{
"widgets": [{
"type": "metric",
"width": 12,
"height": 6,
"properties": {
"metrics": [
    ["%[1]s","cycle_success","component","poller"],
    ["%[1]s","cycle_failed","component","poller"]
],
"period": 300,
"stat": "Sum",
"title": "Poll cycles"
}
},{
"type": "metric",
"width": 12,
"height": 6,
"properties": {
"metrics": [
    ["%[1]s","cycle_duration","component","poller"],
    ["%[1]s","sales_fetched","component","poller"]
],
"period": 300,
"stat": "Average",
"title": "Cycle duration and sales"
}
}]
}`, namespace)

	if _, err := client.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(dashboard),
		DashboardBody: aws.String(body),
	}); err != nil {
		GetLogger().WithComponent("cloudwatch").WithError(err).Warn("failed to create CloudWatch dashboard")
	}
}
