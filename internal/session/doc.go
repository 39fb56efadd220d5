// Package session はログイン名とパスワードによる認証とセッショントークンの発行を行う。
//
// パスワードはbcryptで検証し、セッションはHS256署名のJWTとして表現する。
// トークンの検証はpkg/middlewareのSessionAuthが行う。
package session
