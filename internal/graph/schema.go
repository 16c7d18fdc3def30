// Package graph exposes the GraphQL surface mirroring the REST mutations.
package graph

import (
	"net/http"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
)

const schemaString = `
schema {
	query: Query
	mutation: Mutation
}

type Creator {
	id: ID!
	name: String!
}

type Post {
	id: ID!
	title: String!
	content: String!
	imageUrl: String!
	creator: Creator!
	createdAt: String!
}

type User {
	id: ID!
	name: String!
	email: String!
	status: String!
	posts: [Post!]!
}

type AuthData {
	token: String!
	userId: String!
}

type PostData {
	posts: [Post!]!
	totalPosts: Int!
}

input PostInputData {
	title: String!
	content: String!
	imageUrl: String
}

input UserInputData {
	email: String!
	name: String!
	password: String!
}

type Query {
	login(email: String!, password: String!): AuthData!
	posts(page: Int): PostData!
	post(id: ID!): Post!
	user: User!
}

type Mutation {
	createUser(userInput: UserInputData!): User!
	createPost(postInput: PostInputData!): Post!
	updatePost(id: ID!, postInput: PostInputData!): Post!
	deletePost(id: ID!): Boolean!
	updateStatus(status: String!): User!
}
`

// NewHandler parses the schema against the resolver and returns the HTTP
// handler serving /graphql.
func NewHandler(resolver *Resolver) http.Handler {
	schema := graphql.MustParseSchema(schemaString, resolver)
	return &relay.Handler{Schema: schema}
}
