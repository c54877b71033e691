package ide

import (
	"fmt"
	"html/template"
)

// GraphiQLVersion the default version to use
var GraphiQLVersion = "3.0.6"

type GraphiQLOptions struct {
	// Title of the page
	Title string
	// URL of the GraphQL endpoint queries are sent to
	URL     string
	Version string
}

type graphiqlData struct {
	Title           string
	URL             string
	GraphiQLVersion string
}

var graphiqlTemplate = template.Must(template.New("GraphiQL").Parse(graphiqlPageTemplate))

// NewGraphiQL renders a GraphiQL page sending queries to opts.URL
func NewGraphiQL(opts GraphiQLOptions) (*Page, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("graphiql: url is required")
	}

	version := opts.Version
	if version == "" {
		version = GraphiQLVersion
	}

	title := opts.Title
	if title == "" {
		title = "GraphiQL"
	}

	page, err := render(graphiqlTemplate, graphiqlData{
		Title:           title,
		URL:             opts.URL,
		GraphiQLVersion: versionSuffix(version),
	})
	if err != nil {
		return nil, fmt.Errorf("graphiql: %w", err)
	}
	return page, nil
}

const graphiqlPageTemplate = `
{{ define "index" }}
<!DOCTYPE html>
<html>

<head>
  <meta charset="utf-8" />
  <title>{{ .Title }}</title>
  <style>
    body {
      height: 100%;
      margin: 0;
      width: 100%;
      overflow: hidden;
    }

    #graphiql {
      height: 100vh;
    }
  </style>
  <link rel="stylesheet" href="//cdn.jsdelivr.net/npm/graphiql{{ .GraphiQLVersion }}/graphiql.min.css" />
  <script src="//cdn.jsdelivr.net/npm/react@18/umd/react.production.min.js"></script>
  <script src="//cdn.jsdelivr.net/npm/react-dom@18/umd/react-dom.production.min.js"></script>
  <script src="//cdn.jsdelivr.net/npm/graphiql{{ .GraphiQLVersion }}/graphiql.min.js"></script>
</head>

<body>
  <div id="graphiql">Loading...</div>
  <script>
    var fetcher = GraphiQL.createFetcher({ url: {{ .URL }} });
    var root = ReactDOM.createRoot(document.getElementById('graphiql'));
    root.render(React.createElement(GraphiQL, { fetcher: fetcher, defaultEditorToolsVisibility: true }));
  </script>
</body>

</html>
{{ end }}
`
