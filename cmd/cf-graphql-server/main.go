// Command cf-graphql-server serves a GraphQL schema generated from the
// content types of a Contentful space.
package main

func main() {
	Execute()
}
