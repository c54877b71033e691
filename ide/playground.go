package ide

import (
	"fmt"
	"html/template"
)

// PlaygroundVersion the default version to use
var PlaygroundVersion = "1.7.28"

type PlaygroundOptions struct {
	Title                string
	Version              string
	Endpoint             string
	SubscriptionEndpoint string
}

type playgroundData struct {
	Title                string
	PlaygroundVersion    string
	Endpoint             string
	SubscriptionEndpoint string
	SetTitle             bool
}

var playgroundTemplate = template.Must(template.New("Playground").Parse(graphcoolPlaygroundTemplate))

// NewPlayground renders the Playground GUI pointed at the endpoint
func NewPlayground(opts PlaygroundOptions) (*Page, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("playground: endpoint is required")
	}

	version := opts.Version
	if version == "" {
		version = PlaygroundVersion
	}

	title := opts.Title
	if title == "" {
		title = "GraphQL Playground"
	}

	page, err := render(playgroundTemplate, playgroundData{
		Title:                title,
		PlaygroundVersion:    versionSuffix(version),
		Endpoint:             opts.Endpoint,
		SubscriptionEndpoint: opts.SubscriptionEndpoint,
		SetTitle:             opts.Title == "",
	})
	if err != nil {
		return nil, fmt.Errorf("playground: %w", err)
	}
	return page, nil
}

const graphcoolPlaygroundTemplate = `
{{ define "index" }}
<!DOCTYPE html>
<html>

<head>
  <meta charset=utf-8/>
  <meta name="viewport" content="user-scalable=no, initial-scale=1.0, minimum-scale=1.0, maximum-scale=1.0, minimal-ui">
  <title>{{ .Title }}</title>
  <link rel="stylesheet" href="//cdn.jsdelivr.net/npm/graphql-playground-react{{ .PlaygroundVersion }}/build/static/css/index.css" />
  <link rel="shortcut icon" href="//cdn.jsdelivr.net/npm/graphql-playground-react{{ .PlaygroundVersion }}/build/favicon.png" />
  <script src="//cdn.jsdelivr.net/npm/graphql-playground-react{{ .PlaygroundVersion }}/build/static/js/middleware.js"></script>
</head>

<body>
  <div id="root">
    <style>
      body {
        background-color: rgb(23, 42, 58);
        font-family: Open Sans, sans-serif;
        height: 90vh;
      }

      #root {
        height: 100%;
        width: 100%;
        display: flex;
        align-items: center;
        justify-content: center;
      }

      .loading {
        font-size: 32px;
        font-weight: 200;
        color: rgba(255, 255, 255, .6);
        margin-left: 20px;
      }

      img {
        width: 78px;
        height: 78px;
      }

      .title {
        font-weight: 400;
      }
    </style>
    <img src='//cdn.jsdelivr.net/npm/graphql-playground-react/build/logo.png' alt=''>
    <div class="loading"> Loading
      <span class="title">{{ .Title }}</span>
    </div>
  </div>
  <script>window.addEventListener('load', function (event) {
      GraphQLPlayground.init(document.getElementById('root'), {
        endpoint: {{ .Endpoint }},
        {{- if .SubscriptionEndpoint }}
        subscriptionEndpoint: {{ .SubscriptionEndpoint }},
        {{- end }}
        setTitle: {{ .SetTitle }}
      })
    })</script>
</body>

</html>
{{ end }}
`
