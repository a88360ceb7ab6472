// Package graph exposes the feed over GraphQL.
package graph

import (
	"context"

	"github.com/graphql-go/graphql"
	"github.com/isdelr/feedhub/internal/apperr"
	"github.com/isdelr/feedhub/internal/auth"
	"github.com/isdelr/feedhub/internal/models"
	"github.com/isdelr/feedhub/internal/services"
)

// UserLookup resolves post creators.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

// isoTime renders timestamps in UTC with millisecond precision.
const isoTime = "2006-01-02T15:04:05.000Z"

type resolver struct {
	feed   services.FeedServiceProvider
	users  services.UserServiceProvider
	lookup UserLookup
}

// NewSchema builds the GraphQL schema over the feed and user services.
func NewSchema(feed services.FeedServiceProvider, users services.UserServiceProvider, lookup UserLookup) (graphql.Schema, error) {
	res := &resolver{feed: feed, users: users, lookup: lookup}

	var postType, userType *graphql.Object

	userType = graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"_id":      &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
				"name":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"email":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"password": &graphql.Field{Type: graphql.String},
				"status":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"posts": &graphql.Field{
					Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(postType))),
					Resolve: res.userPosts,
				},
			}
		}),
	})

	postType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Post",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"_id":      &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
				"title":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"content":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"imageUrl": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"creator": &graphql.Field{
					Type:    graphql.NewNonNull(userType),
					Resolve: res.postCreator,
				},
				"createdAt": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"updatedAt": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			}
		}),
	})

	authDataType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AuthData",
		Fields: graphql.Fields{
			"token":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"userId": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	postDataType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PostData",
		Fields: graphql.Fields{
			"posts":      &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(postType)))},
			"totalPosts": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	userInputType := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "UserInputData",
		Fields: graphql.InputObjectConfigFieldMap{
			"email":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"name":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"password": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	postInputType := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "PostInputData",
		Fields: graphql.InputObjectConfigFieldMap{
			"title":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"content":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"imageUrl": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "RootQuery",
		Fields: graphql.Fields{
			"login": &graphql.Field{
				Type: graphql.NewNonNull(authDataType),
				Args: graphql.FieldConfigArgument{
					"email":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"password": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: res.login,
			},
			"posts": &graphql.Field{
				Type:    graphql.NewNonNull(postDataType),
				Args:    graphql.FieldConfigArgument{"page": &graphql.ArgumentConfig{Type: graphql.Int}},
				Resolve: res.posts,
			},
			"post": &graphql.Field{
				Type:    graphql.NewNonNull(postType),
				Args:    graphql.FieldConfigArgument{"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)}},
				Resolve: res.post,
			},
			"user": &graphql.Field{
				Type:    graphql.NewNonNull(userType),
				Resolve: res.user,
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "RootMutation",
		Fields: graphql.Fields{
			"createUser": &graphql.Field{
				Type:    graphql.NewNonNull(userType),
				Args:    graphql.FieldConfigArgument{"userInput": &graphql.ArgumentConfig{Type: userInputType}},
				Resolve: res.createUser,
			},
			"createPost": &graphql.Field{
				Type:    graphql.NewNonNull(postType),
				Args:    graphql.FieldConfigArgument{"postInput": &graphql.ArgumentConfig{Type: postInputType}},
				Resolve: res.createPost,
			},
			"updatePost": &graphql.Field{
				Type: graphql.NewNonNull(postType),
				Args: graphql.FieldConfigArgument{
					"id":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"postInput": &graphql.ArgumentConfig{Type: postInputType},
				},
				Resolve: res.updatePost,
			},
			"deletePost": &graphql.Field{
				Type:    graphql.Boolean,
				Args:    graphql.FieldConfigArgument{"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)}},
				Resolve: res.deletePost,
			},
			"updateStatus": &graphql.Field{
				Type:    graphql.NewNonNull(userType),
				Args:    graphql.FieldConfigArgument{"status": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)}},
				Resolve: res.updateStatus,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query, Mutation: mutation})
}

func (r *resolver) login(p graphql.ResolveParams) (interface{}, error) {
	data, err := r.users.Login(p.Context, stringArg(p.Args, "email"), stringArg(p.Args, "password"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"token": data.Token, "userId": data.UserID}, nil
}

func (r *resolver) posts(p graphql.ResolveParams) (interface{}, error) {
	page, _ := p.Args["page"].(int)
	result, err := r.feed.ListPosts(p.Context, auth.FromContext(p.Context), page)
	if err != nil {
		return nil, err
	}
	posts := make([]interface{}, 0, len(result.Posts))
	for _, post := range result.Posts {
		posts = append(posts, postMap(post))
	}
	return map[string]interface{}{"posts": posts, "totalPosts": result.TotalItems}, nil
}

func (r *resolver) post(p graphql.ResolveParams) (interface{}, error) {
	post, err := r.feed.GetPost(p.Context, auth.FromContext(p.Context), stringArg(p.Args, "id"))
	if err != nil {
		return nil, err
	}
	return postMap(post), nil
}

func (r *resolver) user(p graphql.ResolveParams) (interface{}, error) {
	user, err := r.users.GetUser(p.Context, auth.FromContext(p.Context))
	if err != nil {
		return nil, err
	}
	return userMap(user), nil
}

func (r *resolver) createUser(p graphql.ResolveParams) (interface{}, error) {
	in := inputArg(p.Args, "userInput")
	user, err := r.users.Signup(p.Context, models.SignupInput{
		Email:    stringArg(in, "email"),
		Name:     stringArg(in, "name"),
		Password: stringArg(in, "password"),
	})
	if err != nil {
		return nil, err
	}
	return userMap(user), nil
}

func (r *resolver) createPost(p graphql.ResolveParams) (interface{}, error) {
	post, err := r.feed.CreatePost(p.Context, auth.FromContext(p.Context), postInput(p.Args))
	if err != nil {
		return nil, err
	}
	return postMap(post), nil
}

func (r *resolver) updatePost(p graphql.ResolveParams) (interface{}, error) {
	post, err := r.feed.UpdatePost(p.Context, auth.FromContext(p.Context), stringArg(p.Args, "id"), postInput(p.Args))
	if err != nil {
		return nil, err
	}
	return postMap(post), nil
}

func (r *resolver) deletePost(p graphql.ResolveParams) (interface{}, error) {
	if err := r.feed.DeletePost(p.Context, auth.FromContext(p.Context), stringArg(p.Args, "id")); err != nil {
		return nil, err
	}
	return true, nil
}

func (r *resolver) updateStatus(p graphql.ResolveParams) (interface{}, error) {
	user, err := r.users.UpdateStatus(p.Context, auth.FromContext(p.Context), stringArg(p.Args, "status"))
	if err != nil {
		return nil, err
	}
	return userMap(user), nil
}

// postCreator loads the full author record for a post.
func (r *resolver) postCreator(p graphql.ResolveParams) (interface{}, error) {
	src, _ := p.Source.(map[string]interface{})
	creatorID, _ := src["creatorId"].(string)
	user, err := r.lookup.GetByID(p.Context, creatorID)
	if err != nil {
		return nil, err
	}
	return userMap(user), nil
}

// userPosts resolves owned post ids, skipping posts deleted since the user was read.
func (r *resolver) userPosts(p graphql.ResolveParams) (interface{}, error) {
	src, _ := p.Source.(map[string]interface{})
	ids, _ := src["posts"].([]string)

	posts := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		post, err := r.feed.GetPost(p.Context, auth.FromContext(p.Context), id)
		if apperr.Is(err, apperr.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		posts = append(posts, postMap(post))
	}
	return posts, nil
}

func postMap(post models.Post) map[string]interface{} {
	return map[string]interface{}{
		"_id":       post.ID,
		"title":     post.Title,
		"content":   post.Content,
		"imageUrl":  post.ImageURL,
		"creatorId": post.Creator.ID,
		"createdAt": post.CreatedAt.UTC().Format(isoTime),
		"updatedAt": post.UpdatedAt.UTC().Format(isoTime),
	}
}

func userMap(user models.User) map[string]interface{} {
	return map[string]interface{}{
		"_id":      user.ID,
		"name":     user.Name,
		"email":    user.Email,
		"password": nil,
		"status":   user.Status,
		"posts":    user.Posts,
	}
}

func postInput(args map[string]interface{}) models.PostInput {
	in := inputArg(args, "postInput")
	return models.PostInput{
		Title:    stringArg(in, "title"),
		Content:  stringArg(in, "content"),
		ImageURL: stringArg(in, "imageUrl"),
	}
}

func inputArg(args map[string]interface{}, key string) map[string]interface{} {
	in, _ := args[key].(map[string]interface{})
	return in
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}
