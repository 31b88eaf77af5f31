package provider

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambdalocal/gateway/internal/route"
	"github.com/lambdalocal/gateway/internal/template"
	"github.com/lambdalocal/gateway/internal/util"
)

func buildFromYAML(t *testing.T, text string, opts ...BuilderOption) (*Table, error) {
	t.Helper()
	tmpl, err := template.Parse([]byte(text))
	require.NoError(t, err)
	builder := NewBuilder(NewLocalReader(nil), nil, opts...)
	return builder.Build(tmpl, t.TempDir())
}

func mustBuild(t *testing.T, text string, opts ...BuilderOption) *Table {
	t.Helper()
	table, err := buildFromYAML(t, text, opts...)
	require.NoError(t, err)
	return table
}

func findRoute(t *testing.T, table *Table, path string) *route.Route {
	t.Helper()
	for _, r := range table.Routes {
		if r.Path == path {
			return r
		}
	}
	t.Fatalf("no route with path %s", path)
	return nil
}

const implicitOnlyTemplate = `
Resources:
  HelloFunction:
    Type: AWS::Serverless::Function
    Properties:
      Handler: app.handler
      Events:
        MyApi:
          Type: Api
          Properties:
            Path: /hello
            Method: get
`

func TestBuild_ImplicitEventYieldsSingleRoute(t *testing.T) {
	t.Parallel()

	table := mustBuild(t, implicitOnlyTemplate)

	require.Len(t, table.Routes, 1)
	r := table.Routes[0]
	assert.Equal(t, "/hello", r.Path)
	assert.Equal(t, []string{"GET"}, r.Methods)
	assert.Equal(t, "HelloFunction", r.FunctionName)
	assert.Empty(t, r.StageName)
}

func TestBuild_AnyMethodExpandsToSevenMethods(t *testing.T) {
	t.Parallel()

	table := mustBuild(t, `
Resources:
  Fn:
    Type: AWS::Serverless::Function
    Properties:
      Events:
        All:
          Type: Api
          Properties:
            Path: /everything
            Method: ANY
`)

	require.Len(t, table.Routes, 1)
	r := table.Routes[0]
	sort.Strings(r.Methods)
	assert.Equal(t, []string{"DELETE", "GET", "HEAD", "OPTIONS", "PATCH", "POST", "PUT"}, r.Methods)
	assert.Equal(t, "Fn", r.FunctionName)
}

const conflictTemplate = `
Resources:
  MyApi:
    Type: AWS::Serverless::Api
    Properties:
      StageName: Prod
      DefinitionBody:
        swagger: "2.0"
        paths:
          /x:
            get:
              x-amazon-apigateway-integration:
                type: aws_proxy
                uri: arn:aws:apigateway:us-east-1:lambda:path/2015-03-31/functions/arn:aws:lambda:us-east-1:123456789012:function:SwaggerFn/invocations
  EventFn:
    Type: AWS::Serverless::Function
    Properties:
      Events:
        Conflicting:
          Type: Api
          Properties:
            Path: /x
            Method: get
`

func TestBuild_ImplicitWinsOverExplicit(t *testing.T) {
	t.Parallel()

	table := mustBuild(t, conflictTemplate)

	r := findRoute(t, table, "/x")
	assert.Equal(t, "EventFn", r.FunctionName)
}

func TestBuild_ImplicitAnyMasksExplicitMethods(t *testing.T) {
	t.Parallel()

	table := mustBuild(t, `
Resources:
  MyApi:
    Type: AWS::Serverless::Api
    Properties:
      StageName: Prod
      DefinitionBody:
        swagger: "2.0"
        paths:
          /x:
            get:
              x-amazon-apigateway-integration:
                type: aws_proxy
                uri: arn:aws:apigateway:us-east-1:lambda:path/2015-03-31/functions/arn:aws:lambda:us-east-1:123456789012:function:SwaggerFn/invocations
            post:
              x-amazon-apigateway-integration:
                type: aws_proxy
                uri: arn:aws:apigateway:us-east-1:lambda:path/2015-03-31/functions/arn:aws:lambda:us-east-1:123456789012:function:SwaggerFn/invocations
  EventFn:
    Type: AWS::Serverless::Function
    Properties:
      Events:
        All:
          Type: Api
          Properties:
            Path: /x
            Method: ANY
`)

	for _, r := range table.Routes {
		assert.Equal(t, "EventFn", r.FunctionName)
	}
	r := findRoute(t, table, "/x")
	assert.Len(t, r.Methods, 7)
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	first := mustBuild(t, conflictTemplate)
	second := mustBuild(t, conflictTemplate)

	key := func(table *Table) []string {
		var keys []string
		for _, r := range table.Routes {
			for _, m := range r.Methods {
				keys = append(keys, r.Path+" "+m+" "+r.FunctionName)
			}
		}
		sort.Strings(keys)
		return keys
	}
	assert.Equal(t, key(first), key(second))
}

func TestBuild_ImplicitCollisionLastDeclaredWins(t *testing.T) {
	t.Parallel()

	table := mustBuild(t, `
Resources:
  FirstFn:
    Type: AWS::Serverless::Function
    Properties:
      Events:
        E:
          Type: Api
          Properties:
            Path: /x
            Method: ANY
  SecondFn:
    Type: AWS::Serverless::Function
    Properties:
      Events:
        E:
          Type: Api
          Properties:
            Path: /x
            Method: ANY
`)

	require.Len(t, table.Routes, 1)
	assert.Equal(t, "SecondFn", table.Routes[0].FunctionName)
}

func TestBuild_BinaryTypesMergedWithoutDuplicates(t *testing.T) {
	t.Parallel()

	table := mustBuild(t, `
Resources:
  MyApi:
    Type: AWS::Serverless::Api
    Properties:
      StageName: Prod
      BinaryMediaTypes:
        - image/png
        - image~1gif
      DefinitionBody:
        swagger: "2.0"
        x-amazon-apigateway-binary-media-types:
          - image/png
        paths:
          /img:
            get:
              x-amazon-apigateway-integration:
                type: aws_proxy
                uri: arn:aws:apigateway:us-east-1:lambda:path/2015-03-31/functions/arn:aws:lambda:us-east-1:123456789012:function:ImgFn/invocations
`)

	r := findRoute(t, table, "/img")
	assert.Equal(t, []string{"image/gif", "image/png"}, r.BinaryMediaTypes)
}

func TestBuild_ReferencedAPIRouteInheritsBinaryTypes(t *testing.T) {
	t.Parallel()

	table := mustBuild(t, `
Resources:
  MyApi:
    Type: AWS::Serverless::Api
    Properties:
      StageName: Prod
      BinaryMediaTypes:
        - application/octet-stream
  Fn:
    Type: AWS::Serverless::Function
    Properties:
      Events:
        E:
          Type: Api
          Properties:
            Path: /bin
            Method: get
            RestApiId:
              Ref: MyApi
`, WithDefaultBinaryMediaTypes([]string{"image/png"}))

	r := findRoute(t, table, "/bin")
	assert.Equal(t, []string{"application/octet-stream"}, r.BinaryMediaTypes)
}

func TestBuild_TrueImplicitRouteGetsDefaultBinaryTypes(t *testing.T) {
	t.Parallel()

	table := mustBuild(t, implicitOnlyTemplate, WithDefaultBinaryMediaTypes([]string{"image/png"}))

	r := findRoute(t, table, "/hello")
	assert.Equal(t, []string{"image/png"}, r.BinaryMediaTypes)
}

func TestBuild_CorsAlwaysIncludesOptions(t *testing.T) {
	t.Parallel()

	table := mustBuild(t, `
Resources:
  MyApi:
    Type: AWS::Serverless::Api
    Properties:
      StageName: Prod
      Cors:
        AllowOrigin: "'*'"
        AllowMethods:
          - GET
          - POST
      DefinitionBody:
        swagger: "2.0"
        paths:
          /hello:
            get:
              x-amazon-apigateway-integration:
                type: aws_proxy
                uri: arn:aws:apigateway:us-east-1:lambda:path/2015-03-31/functions/arn:aws:lambda:us-east-1:123456789012:function:Fn/invocations
`)

	r := findRoute(t, table, "/hello")
	require.NotNil(t, r.Cors)
	assert.Equal(t, "*", r.Cors.AllowOrigin)
	assert.Contains(t, strings.Split(r.Cors.AllowMethods, ","), "OPTIONS")
}

func TestBuild_CorsBareString(t *testing.T) {
	t.Parallel()

	table := mustBuild(t, `
Resources:
  MyApi:
    Type: AWS::Serverless::Api
    Properties:
      StageName: Prod
      Cors: "'https://example.com'"
      DefinitionBody:
        swagger: "2.0"
        paths:
          /hello:
            get:
              x-amazon-apigateway-integration:
                type: aws_proxy
                uri: arn:aws:apigateway:us-east-1:lambda:path/2015-03-31/functions/arn:aws:lambda:us-east-1:123456789012:function:Fn/invocations
`)

	r := findRoute(t, table, "/hello")
	require.NotNil(t, r.Cors)
	assert.Equal(t, "https://example.com", r.Cors.AllowOrigin)
	assert.Len(t, strings.Split(r.Cors.AllowMethods, ","), 7)
}

func TestBuild_StageAttachedToExplicitRoutes(t *testing.T) {
	t.Parallel()

	table := mustBuild(t, `
Resources:
  MyApi:
    Type: AWS::Serverless::Api
    Properties:
      StageName: Staging
      Variables:
        TABLE: users
      DefinitionBody:
        swagger: "2.0"
        paths:
          /hello:
            get:
              x-amazon-apigateway-integration:
                type: aws_proxy
                uri: arn:aws:apigateway:us-east-1:lambda:path/2015-03-31/functions/arn:aws:lambda:us-east-1:123456789012:function:Fn/invocations
`)

	r := findRoute(t, table, "/hello")
	assert.Equal(t, "Staging", r.StageName)
	assert.Equal(t, map[string]string{"TABLE": "users"}, r.StageVariables)
}

func TestBuild_InvalidRestApiIdShapeFatal(t *testing.T) {
	t.Parallel()

	_, err := buildFromYAML(t, `
Resources:
  Fn:
    Type: AWS::Serverless::Function
    Properties:
      Events:
        E:
          Type: Api
          Properties:
            Path: /x
            Method: get
            RestApiId:
              Fn::GetAtt: [MyApi, RootResourceId]
`)

	var invalid *util.InvalidDocumentError
	require.ErrorAs(t, err, &invalid)
}

func TestBuild_HttpApiEventDefaultsToCatchAll(t *testing.T) {
	t.Parallel()

	table := mustBuild(t, `
Resources:
  Fn:
    Type: AWS::Serverless::Function
    Properties:
      Events:
        E:
          Type: HttpApi
`)

	require.Len(t, table.Routes, 1)
	r := table.Routes[0]
	assert.True(t, r.IsDefaultRoute)
	assert.Equal(t, route.DefaultPath, r.Path)
	assert.Equal(t, route.KindHTTP, r.EventKind)
}

func TestBuild_APIWithoutBodySkipped(t *testing.T) {
	t.Parallel()

	table := mustBuild(t, `
Resources:
  EmptyApi:
    Type: AWS::Serverless::Api
    Properties:
      StageName: Prod
`)

	assert.Empty(t, table.Routes)
}

func TestBuild_DefinitionUriLoadsLocalDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := `
swagger: "2.0"
paths:
  /external:
    get:
      x-amazon-apigateway-integration:
        type: aws_proxy
        uri: arn:aws:apigateway:us-east-1:lambda:path/2015-03-31/functions/arn:aws:lambda:us-east-1:123456789012:function:ExtFn/invocations
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "api.yaml"), []byte(doc), 0o600))

	tmpl, err := template.Parse([]byte(`
Resources:
  MyApi:
    Type: AWS::Serverless::Api
    Properties:
      StageName: Prod
      DefinitionUri: api.yaml
`))
	require.NoError(t, err)

	table, err := NewBuilder(NewLocalReader(nil), nil).Build(tmpl, dir)
	require.NoError(t, err)

	r := findRoute(t, table, "/external")
	assert.Equal(t, "ExtFn", r.FunctionName)
	assert.Equal(t, "Prod", r.StageName)
}

func TestBuild_RawAPIBody(t *testing.T) {
	t.Parallel()

	table := mustBuild(t, `
Resources:
  RawApi:
    Type: AWS::ApiGateway::RestApi
    Properties:
      Body:
        swagger: "2.0"
        paths:
          /raw:
            get:
              x-amazon-apigateway-integration:
                type: aws_proxy
                uri: arn:aws:apigateway:us-east-1:lambda:path/2015-03-31/functions/arn:aws:lambda:us-east-1:123456789012:function:RawFn/invocations
`)

	r := findRoute(t, table, "/raw")
	assert.Equal(t, "RawFn", r.FunctionName)
	assert.Nil(t, r.Cors)
}

func TestBuild_DefaultAuthorizerAppliedToRoutes(t *testing.T) {
	t.Parallel()

	table := mustBuild(t, `
Resources:
  HttpApi:
    Type: AWS::Serverless::HttpApi
    Properties:
      DefinitionBody:
        openapi: "3.0.1"
        security:
          - DocAuth: []
        components:
          securitySchemes:
            DocAuth:
              x-amazon-apigateway-authorizer:
                type: request
                authorizerUri: arn:aws:apigateway:us-east-1:lambda:path/2015-03-31/functions/arn:aws:lambda:us-east-1:123456789012:function:AuthFn/invocations
        paths:
          /secured:
            get:
              x-amazon-apigateway-integration:
                type: aws_proxy
                uri: arn:aws:apigateway:us-east-1:lambda:path/2015-03-31/functions/arn:aws:lambda:us-east-1:123456789012:function:Fn/invocations
`)

	r := findRoute(t, table, "/secured")
	assert.Equal(t, "DocAuth", r.AuthorizerName)
	require.Contains(t, table.Authorizers, "HttpApi")
	assert.Contains(t, table.Authorizers["HttpApi"], "DocAuth")
}
