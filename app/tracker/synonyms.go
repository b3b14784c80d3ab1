package tracker

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/cloud"
)

// defaultSynonyms maps marketing names, as the service patterns extract
// them, to the short token the provider uses in resource names and
// changelog entries.
var defaultSynonyms = map[string]string{
	// AWS
	"elastic kubernetes service":   "eks",
	"eks":                          "eks",
	"elastic container service":    "ecs",
	"ecs":                          "ecs",
	"elastic container registry":   "ecr",
	"ec2":                          "ec2",
	"elastic compute cloud":        "ec2",
	"s3":                           "s3",
	"simple storage service":       "s3",
	"s3 express one zone":          "s3",
	"relational database service":  "rds",
	"rds":                          "rds",
	"aurora":                       "rds",
	"dynamodb":                     "dynamodb",
	"lambda":                       "lambda",
	"cloudwatch":                   "cloudwatch",
	"cloudfront":                   "cloudfront",
	"virtual private cloud":        "vpc",
	"vpc":                          "vpc",
	"elasticache":                  "elasticache",
	"opensearch service":           "opensearch",
	"simple queue service":         "sqs",
	"sqs":                          "sqs",
	"simple notification service":  "sns",
	"sns":                          "sns",
	"identity and access":          "iam",
	"iam":                          "iam",
	"key management service":       "kms",
	"kms":                          "kms",
	"bedrock":                      "bedrock",
	"sagemaker":                    "sagemaker",
	"route 53":                     "route53",
	"api gateway":                  "api_gateway",
	"step functions":               "sfn",
	"eventbridge":                  "cloudwatch_event",
	"managed streaming for apache": "msk",
	"msk":                          "msk",
	"redshift":                     "redshift",
	"glue":                         "glue",
	"athena":                       "athena",
	"kinesis data streams":         "kinesis",
	"backup":                       "backup",
	"fsx":                          "fsx",
	"efs":                          "efs",
	"elastic file system":          "efs",

	// Azure
	"kubernetes service":      "kubernetes_cluster",
	"aks":                     "kubernetes_cluster",
	"container apps":          "container_app",
	"functions":               "function_app",
	"app service":             "app_service",
	"virtual machines":        "virtual_machine",
	"storage":                 "storage_account",
	"blob storage":            "storage_blob",
	"cosmos db":               "cosmosdb",
	"sql database":            "mssql_database",
	"key vault":               "key_vault",
	"monitor":                 "monitor",
	"front door":              "cdn_frontdoor",
	"application gateway":     "application_gateway",
	"firewall":                "firewall",
	"container registry":      "container_registry",
	"openai service":          "cognitive_account",
	"event hubs":              "eventhub",
	"service bus":             "servicebus",
	"database for postgresql": "postgresql_flexible_server",
	"database for mysql":      "mysql_flexible_server",

	// Google Cloud
	"cloud run":                "cloud_run",
	"cloud sql":                "sql_database_instance",
	"cloud storage":            "storage_bucket",
	"cloud functions":          "cloudfunctions",
	"gke":                      "container_cluster",
	"google kubernetes engine": "container_cluster",
	"compute engine":           "compute",
	"bigquery":                 "bigquery",
	"vertex ai":                "vertex_ai",
	"pub/sub":                  "pubsub",
	"cloud spanner":            "spanner",
	"spanner":                  "spanner",
	"bigtable":                 "bigtable",
	"firestore":                "firestore",
	"memorystore":              "redis",
	"filestore":                "filestore",
	"dataflow":                 "dataflow",
	"dataproc":                 "dataproc",
	"cloud build":              "cloudbuild",
	"cloud dns":                "dns",
	"cloud load balancing":     "compute_backend_service",
	"cloud armor":              "compute_security_policy",
	"cloud composer":           "composer",
	"cloud kms":                "kms",
	"cloud tasks":              "cloud_tasks",
	"cloud scheduler":          "cloud_scheduler",
	"cloud monitoring":         "monitoring",
	"cloud logging":            "logging",
}

// Resolver maps display service names to canonical tokens.
type Resolver struct {
	synonyms map[string]string
}

// NewResolver returns a resolver over the built-in mapping, extended (and
// overridden) by extra.
func NewResolver(extra map[string]string) *Resolver {
	r := &Resolver{
		synonyms: make(map[string]string, len(defaultSynonyms)+len(extra)),
	}
	for name, token := range defaultSynonyms {
		r.synonyms[r.key(name)] = token
	}
	for name, token := range extra {
		r.synonyms[r.key(name)] = strings.ToLower(strings.TrimSpace(token))
	}
	return r
}

func (r *Resolver) key(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// ResolveServiceToken looks the name up case-insensitively; unknown names
// resolve to themselves, lowercased.
func (r *Resolver) ResolveServiceToken(serviceName string) string {
	if token, ok := r.synonyms[r.key(serviceName)]; ok {
		return token
	}
	return strings.ToLower(strings.TrimSpace(serviceName))
}

// KnownPrefix returns the longest leading run of words in serviceName that
// the mapping knows, e.g. "EKS" for "EKS Now Supports Hybrid Nodes".
func (r *Resolver) KnownPrefix(serviceName string) (string, bool) {
	words := strings.Fields(serviceName)
	for n := len(words); n > 0; n-- {
		prefix := strings.Join(words[:n], " ")
		if _, ok := r.synonyms[r.key(prefix)]; ok {
			return prefix, true
		}
	}
	return "", false
}

// GuessResourceName prefixes the token with the cloud's resource prefix.
// The result is a heuristic matching signal, not a validated resource type.
func GuessResourceName(c cloud.Cloud, token string) string {
	if token == "" {
		return ""
	}
	return c.Profile().ResourcePrefix + token
}
